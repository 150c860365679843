package repair

import (
	"testing"

	"github.com/Faultbox/mdlfix/pkg/mdl"
)

// unlinkedNode returns a node with no hierarchy links.
func unlinkedNode(name string) mdl.Node {
	return mdl.Node{Name: name, Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: -1}
}

func TestClassifyFlagsFromReferences(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			unlinkedNode("anchor"),
			unlinkedNode("bone"),
			unlinkedNode("rigid"),
			unlinkedNode("attach"),
		},
		Meshes: []mdl.Mesh{
			{
				Dynamic:   true,
				NodeIndex: 0,
				Vertices: []mdl.Vertex{{
					BoneIndices: [4]int16{1, 0, -1, -1},
					BoneWeights: [4]float32{0.5, 0, 0, 0},
					NormalW:     -1,
				}},
			},
			{
				Dynamic:   false,
				NodeIndex: -1,
				Vertices:  []mdl.Vertex{{NormalW: 2, BoneIndices: [4]int16{-1, -1, -1, -1}}},
			},
		},
		Dummies: []mdl.Dummy{
			{ReferenceID: 7, AttachBoneIndex: 3, ParentBoneIndex: -1},
		},
	}

	changed, _ := classifyNodes(m, &recorder{})
	if !changed {
		t.Fatal("expected classification to report a change")
	}

	if !m.Nodes[0].Flags.Has(mdl.NodeMeshAnchor) {
		t.Error("node 0 should be a mesh anchor")
	}
	if !m.Nodes[1].Flags.Has(mdl.NodeBone) {
		t.Error("node 1 should be a bone (nonzero weight slot)")
	}
	// Slot 1 references node 0 but carries zero weight; it must not flag.
	if m.Nodes[0].Flags.Has(mdl.NodeBone) {
		t.Error("node 0 must not be flagged bone through a zero-weight slot")
	}
	if !m.Nodes[2].Flags.Has(mdl.NodeBone) {
		t.Error("node 2 should be a bone (normal-W of rigid mesh)")
	}
	if !m.Nodes[3].Flags.Has(mdl.NodeDummyOwner) {
		t.Error("node 3 should be a dummy owner")
	}
}

func TestClassifyIsIdempotent(t *testing.T) {
	m := &mdl.Model{
		Nodes:  []mdl.Node{unlinkedNode("a"), unlinkedNode("dead")},
		Meshes: []mdl.Mesh{{NodeIndex: 0}},
	}

	changed, _ := classifyNodes(m, &recorder{})
	if !changed {
		t.Fatal("first classification should change flags")
	}
	changed, _ = classifyNodes(m, &recorder{})
	if changed {
		t.Error("second classification must be a no-op")
	}
}

func TestClassifyDisablesUnreferencedUnlinkedNode(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			unlinkedNode("used"),
			unlinkedNode("dead"),
			{Name: "linked", Parent: 0, FirstChild: -1, PrevSibling: -1, NextSibling: -1},
		},
		Meshes: []mdl.Mesh{{NodeIndex: 0}},
	}

	classifyNodes(m, &recorder{})

	if m.Nodes[1].Flags != mdl.NodeDisabled {
		t.Errorf("node 1 flags = %#x, want exactly Disabled", m.Nodes[1].Flags)
	}
	if m.Nodes[2].Flags.Has(mdl.NodeDisabled) {
		t.Error("node 2 has a hierarchy link and must stay enabled")
	}
}

func TestClassifyWarnsOnOutOfRangeReference(t *testing.T) {
	m := &mdl.Model{
		Nodes:  []mdl.Node{unlinkedNode("only")},
		Meshes: []mdl.Mesh{{NodeIndex: 99}},
	}

	rec := &recorder{}
	classifyNodes(m, rec)

	if len(rec.events) == 0 {
		t.Fatal("expected a warning diagnostic for the out-of-range reference")
	}
	if rec.events[0].Level != LevelWarn {
		t.Errorf("diagnostic level = %v, want warn", rec.events[0].Level)
	}
}

// The three-node scenario: a node nothing references, with all hierarchy
// links unset, is disabled and parked at the end of the sequence, and every
// reference elsewhere is remapped to the new order.
func TestDisabledNodeMovesToSuffix(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			{Name: "root", Parent: -1, FirstChild: 2, PrevSibling: -1, NextSibling: -1},
			unlinkedNode("dead"),
			{Name: "child", Parent: 0, FirstChild: -1, PrevSibling: -1, NextSibling: -1},
		},
		Meshes: []mdl.Mesh{{NodeIndex: 2}},
		BaseSkeleton: mdl.Skeleton{Bones: []mdl.Bone{
			{NodeIndex: 2, Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: -1},
		}},
	}

	rec := &recorder{}
	_, refs := classifyNodes(m, rec)
	if !remapNodes(m, refs, rec) {
		t.Fatal("expected remap to report a change")
	}

	if got := []string{m.Nodes[0].Name, m.Nodes[1].Name, m.Nodes[2].Name}; got[0] != "root" || got[1] != "child" || got[2] != "dead" {
		t.Fatalf("node order after remap = %v", got)
	}
	if m.Nodes[2].Flags != mdl.NodeDisabled {
		t.Error("disabled node should remain disabled after the move")
	}
	if m.Nodes[0].FirstChild != 1 {
		t.Errorf("root first-child = %d, want 1", m.Nodes[0].FirstChild)
	}
	if m.Nodes[1].Parent != 0 {
		t.Errorf("child parent = %d, want 0", m.Nodes[1].Parent)
	}
	if m.Meshes[0].NodeIndex != 1 {
		t.Errorf("mesh node index = %d, want 1", m.Meshes[0].NodeIndex)
	}
	if m.BaseSkeleton.Bones[0].NodeIndex != 1 {
		t.Errorf("skeleton bone node index = %d, want 1", m.BaseSkeleton.Bones[0].NodeIndex)
	}
}

func TestRemapPartitionIsStable(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			unlinkedNode("dead-a"),
			unlinkedNode("live-a"),
			unlinkedNode("dead-b"),
			unlinkedNode("live-b"),
		},
		// Anchors keep the live nodes referenced.
		Meshes: []mdl.Mesh{{NodeIndex: 1}, {NodeIndex: 3}},
	}

	rec := &recorder{}
	_, refs := classifyNodes(m, rec)
	remapNodes(m, refs, rec)

	want := []string{"live-a", "live-b", "dead-a", "dead-b"}
	for i, name := range want {
		if m.Nodes[i].Name != name {
			t.Errorf("node %d = %s, want %s", i, m.Nodes[i].Name, name)
		}
	}
}

func TestRemapResetsOutOfRangeReference(t *testing.T) {
	m := &mdl.Model{
		Nodes:   []mdl.Node{unlinkedNode("only")},
		Dummies: []mdl.Dummy{{AttachBoneIndex: 42, ParentBoneIndex: -1}},
		Meshes:  []mdl.Mesh{{NodeIndex: 0}},
	}

	rec := &recorder{}
	_, refs := classifyNodes(m, rec)
	changed := remapNodes(m, refs, rec)

	if !changed {
		t.Error("resetting an out-of-range reference is a change")
	}
	if m.Dummies[0].AttachBoneIndex != -1 {
		t.Errorf("attach index = %d, want -1", m.Dummies[0].AttachBoneIndex)
	}
	if m.Dummies[0].ParentBoneIndex != -1 {
		t.Error("a -1 reference must stay -1")
	}
}

func TestRemapIdentityIsNoChange(t *testing.T) {
	m := &mdl.Model{
		Nodes:  []mdl.Node{unlinkedNode("a"), unlinkedNode("b")},
		Meshes: []mdl.Mesh{{NodeIndex: 0}, {NodeIndex: 1}},
	}

	rec := &recorder{}
	_, refs := classifyNodes(m, rec)
	if remapNodes(m, refs, rec) {
		t.Error("identity remap must not report a change")
	}
}

func TestSiblingChainSplicesOrphanRoots(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			unlinkedNode("root-a"),
			unlinkedNode("root-b"),
			unlinkedNode("root-c"),
		},
	}
	// Keep them enabled: flag them as bones.
	for i := range m.Nodes {
		m.Nodes[i].Flags.Set(mdl.NodeBone)
	}

	if !repairSiblingChain(m) {
		t.Fatal("expected chain repair to report a change")
	}

	if m.Nodes[0].NextSibling != 1 || m.Nodes[1].PrevSibling != 0 {
		t.Error("root-b not spliced after root-a")
	}
	if m.Nodes[1].NextSibling != 2 || m.Nodes[2].PrevSibling != 1 {
		t.Error("root-c not spliced after root-b")
	}
}

func TestSiblingChainExtendsExistingTail(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			{Name: "head", Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: 1, Flags: mdl.NodeBone},
			{Name: "tail", Parent: -1, FirstChild: -1, PrevSibling: 0, NextSibling: -1, Flags: mdl.NodeBone},
			{Name: "orphan", Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: -1, Flags: mdl.NodeBone},
		},
	}

	repairSiblingChain(m)

	if m.Nodes[1].NextSibling != 2 || m.Nodes[2].PrevSibling != 1 {
		t.Error("orphan should splice onto the existing tail, not node 0")
	}
	if m.Nodes[0].NextSibling != 1 {
		t.Error("existing chain head link must be preserved")
	}
}

func TestSiblingChainSkipsDisabledNodes(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			{Name: "root", Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: -1, Flags: mdl.NodeBone},
			{Name: "live", Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: -1, Flags: mdl.NodeBone},
			{Name: "dead", Parent: -1, FirstChild: -1, PrevSibling: -1, NextSibling: -1, Flags: mdl.NodeDisabled},
		},
	}

	repairSiblingChain(m)

	if m.Nodes[0].NextSibling != 1 {
		t.Error("live root should splice onto node 0")
	}
	if m.Nodes[1].NextSibling != -1 {
		t.Error("disabled node must not join the chain")
	}
	if m.Nodes[2].PrevSibling != -1 {
		t.Error("disabled node links must stay untouched")
	}
}

// A chain head that is not node 0 is legal whenever node 0 is a child.
// The pass must leave such a model alone instead of splicing the head back
// onto its own tail.
func TestSiblingChainKeepsHeadAwayFromNodeZero(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			{Name: "child", Parent: 1, FirstChild: -1, PrevSibling: -1, NextSibling: -1, Flags: mdl.NodeBone},
			{Name: "head", Parent: -1, FirstChild: 0, PrevSibling: -1, NextSibling: 2, Flags: mdl.NodeBone},
			{Name: "tail", Parent: -1, FirstChild: -1, PrevSibling: 1, NextSibling: -1, Flags: mdl.NodeBone},
		},
	}

	if repairSiblingChain(m) {
		t.Fatal("healthy chain reported a change")
	}
	if m.Nodes[1].PrevSibling != -1 || m.Nodes[1].NextSibling != 2 {
		t.Errorf("head links = %d/%d, want -1/2", m.Nodes[1].PrevSibling, m.Nodes[1].NextSibling)
	}
	if m.Nodes[2].PrevSibling != 1 || m.Nodes[2].NextSibling != -1 {
		t.Errorf("tail links = %d/%d, want 1/-1", m.Nodes[2].PrevSibling, m.Nodes[2].NextSibling)
	}

	seen := map[int16]int{}
	for at := int16(1); at != -1; at = m.Nodes[at].NextSibling {
		seen[at]++
		if seen[at] > 1 {
			t.Fatalf("node %d visited twice, chain has a cycle", at)
		}
	}
	if len(seen) != 2 {
		t.Errorf("traversed %d roots, want 2", len(seen))
	}
}

// Traversal check: every enabled root is reachable exactly once from the
// chain head.
func TestSiblingChainSingleTraversal(t *testing.T) {
	m := &mdl.Model{
		Nodes: []mdl.Node{
			unlinkedNode("a"), unlinkedNode("b"), unlinkedNode("c"), unlinkedNode("d"),
		},
	}
	for i := range m.Nodes {
		m.Nodes[i].Flags.Set(mdl.NodeBone)
	}

	repairSiblingChain(m)

	seen := map[int16]int{}
	for at := int16(0); at != -1; at = m.Nodes[at].NextSibling {
		seen[at]++
		if seen[at] > 1 {
			t.Fatalf("node %d visited twice, chain has a cycle", at)
		}
	}
	for i := range m.Nodes {
		if seen[int16(i)] != 1 {
			t.Errorf("node %d visited %d times, want 1", i, seen[int16(i)])
		}
	}
}
