package repair

import "github.com/Faultbox/mdlfix/pkg/mdl"

const (
	passClassify = "classify-nodes"
	passRemap    = "remap-nodes"
)

// refKind identifies which slot of which entity holds a node index. The
// classifier records one descriptor per slot; the remapper resolves them
// against the model and rewrites the stored index.
type refKind uint8

const (
	refMeshNode refKind = iota
	refVertexBone
	refVertexNormalW
	refDummyAttach
	refDummyParent
	refNodeParent
	refNodeFirstChild
	refNodePrevSibling
	refNodeNextSibling
	refSkeletonBone
)

// nodeRef addresses a single node-index slot. The meaning of the owner
// fields depends on kind: mesh/vertex/slot for vertex bones, mesh for the
// mesh anchor, dummy index, node index, or skeleton (0 base, 1 all) + bone
// position.
type nodeRef struct {
	kind   refKind
	owner  int
	vertex int
	slot   int
}

// classifyNodes derives role flags for every node from the references other
// entities hold to it, marks reference-free unlinked nodes disabled, and
// collects the slot descriptors the remapper rewrites afterwards.
func classifyNodes(m *mdl.Model, rec *recorder) (bool, []nodeRef) {
	changed := false
	var refs []nodeRef

	flag := func(index int, role mdl.NodeFlags, what string, at int) {
		if index < 0 {
			return
		}
		if !m.ValidNode(index) {
			rec.warnf(passClassify, "%s %d references node %d, model has %d nodes", what, at, index, len(m.Nodes))
			return
		}
		n := &m.Nodes[index]
		if !n.Flags.Has(role) || n.Flags.Has(mdl.NodeDisabled) {
			n.Flags.Set(role)
			changed = true
		}
	}

	for mi := range m.Meshes {
		mesh := &m.Meshes[mi]
		refs = append(refs, nodeRef{kind: refMeshNode, owner: mi})
		flag(int(mesh.NodeIndex), mdl.NodeMeshAnchor, "mesh", mi)

		for vi := range mesh.Vertices {
			v := &mesh.Vertices[vi]
			if mesh.Dynamic {
				for s := 0; s < mdl.MaxSkinnedBones; s++ {
					if v.BoneWeights[s] == 0 {
						continue
					}
					refs = append(refs, nodeRef{kind: refVertexBone, owner: mi, vertex: vi, slot: s})
					flag(int(v.BoneIndices[s]), mdl.NodeBone, "vertex bone slot of mesh", mi)
				}
			} else {
				refs = append(refs, nodeRef{kind: refVertexNormalW, owner: mi, vertex: vi})
				flag(int(v.NormalW), mdl.NodeBone, "vertex normal-W of mesh", mi)
			}
		}
	}

	for di := range m.Dummies {
		d := &m.Dummies[di]
		refs = append(refs,
			nodeRef{kind: refDummyAttach, owner: di},
			nodeRef{kind: refDummyParent, owner: di})
		flag(int(d.AttachBoneIndex), mdl.NodeDummyOwner, "dummy attach", di)
		flag(int(d.ParentBoneIndex), mdl.NodeDummyOwner, "dummy parent", di)
	}

	for ni := range m.Nodes {
		refs = append(refs,
			nodeRef{kind: refNodeParent, owner: ni},
			nodeRef{kind: refNodeFirstChild, owner: ni},
			nodeRef{kind: refNodePrevSibling, owner: ni},
			nodeRef{kind: refNodeNextSibling, owner: ni})
	}

	for bi := range m.BaseSkeleton.Bones {
		refs = append(refs, nodeRef{kind: refSkeletonBone, owner: 0, slot: bi})
	}
	for bi := range m.AllSkeleton.Bones {
		refs = append(refs, nodeRef{kind: refSkeletonBone, owner: 1, slot: bi})
	}

	// A node nothing references and nothing links to is dead weight; park it.
	// Links the remapper is about to reset (out-of-range targets) count as
	// absent here, so classification reaches the same verdict on every run.
	linked := func(index int16) bool { return m.ValidNode(int(index)) }
	for ni := range m.Nodes {
		n := &m.Nodes[ni]
		unlinked := !linked(n.Parent) && !linked(n.FirstChild) && !linked(n.PrevSibling) && !linked(n.NextSibling)
		if n.Flags&(mdl.NodeBone|mdl.NodeMeshAnchor|mdl.NodeDummyOwner) == 0 && unlinked {
			if n.Flags != mdl.NodeDisabled {
				n.Flags.Set(mdl.NodeDisabled)
				changed = true
			}
		}
	}

	return changed, refs
}

// remapNodes stably partitions the node sequence into enabled nodes followed
// by disabled nodes and rewrites every collected reference through the
// old-to-new index mapping. Out-of-range references are reset to -1.
func remapNodes(m *mdl.Model, refs []nodeRef, rec *recorder) bool {
	mapping := make([]int, len(m.Nodes))
	order := make([]int, 0, len(m.Nodes))
	for ni := range m.Nodes {
		if !m.Nodes[ni].Flags.Has(mdl.NodeDisabled) {
			order = append(order, ni)
		}
	}
	for ni := range m.Nodes {
		if m.Nodes[ni].Flags.Has(mdl.NodeDisabled) {
			order = append(order, ni)
		}
	}

	identity := true
	for newIdx, oldIdx := range order {
		mapping[oldIdx] = newIdx
		if newIdx != oldIdx {
			identity = false
		}
	}

	changed := false
	remap := func(old int) int {
		if old < 0 {
			return old
		}
		if old >= len(mapping) {
			rec.warnf(passRemap, "reference to node %d out of range, model has %d nodes", old, len(mapping))
			changed = true
			return -1
		}
		if mapping[old] != old {
			changed = true
		}
		return mapping[old]
	}
	remap16 := func(old int16) int16 { return int16(remap(int(old))) }

	// Rewrite in the pre-partition storage: node-owned slots travel with
	// their node when the sequence is reordered below.
	for _, ref := range refs {
		switch ref.kind {
		case refMeshNode:
			mesh := &m.Meshes[ref.owner]
			mesh.NodeIndex = int32(remap(int(mesh.NodeIndex)))
		case refVertexBone:
			v := &m.Meshes[ref.owner].Vertices[ref.vertex]
			v.BoneIndices[ref.slot] = remap16(v.BoneIndices[ref.slot])
		case refVertexNormalW:
			v := &m.Meshes[ref.owner].Vertices[ref.vertex]
			v.NormalW = remap16(v.NormalW)
		case refDummyAttach:
			d := &m.Dummies[ref.owner]
			d.AttachBoneIndex = remap16(d.AttachBoneIndex)
		case refDummyParent:
			d := &m.Dummies[ref.owner]
			d.ParentBoneIndex = remap16(d.ParentBoneIndex)
		case refNodeParent:
			n := &m.Nodes[ref.owner]
			n.Parent = remap16(n.Parent)
		case refNodeFirstChild:
			n := &m.Nodes[ref.owner]
			n.FirstChild = remap16(n.FirstChild)
		case refNodePrevSibling:
			n := &m.Nodes[ref.owner]
			n.PrevSibling = remap16(n.PrevSibling)
		case refNodeNextSibling:
			n := &m.Nodes[ref.owner]
			n.NextSibling = remap16(n.NextSibling)
		case refSkeletonBone:
			skel := &m.BaseSkeleton
			if ref.owner == 1 {
				skel = &m.AllSkeleton
			}
			bone := &skel.Bones[ref.slot]
			bone.NodeIndex = int32(remap(int(bone.NodeIndex)))
		}
	}

	if !identity {
		reordered := make([]mdl.Node, len(m.Nodes))
		for newIdx, oldIdx := range order {
			reordered[newIdx] = m.Nodes[oldIdx]
		}
		m.Nodes = reordered
		changed = true
	}

	return changed
}

// repairSiblingChain splices every orphaned enabled root node onto a single
// root sibling chain. Must run after remapNodes: it walks the final node
// order.
func repairSiblingChain(m *mdl.Model) bool {
	// The current chain tail is the last root with a previous sibling but no
	// next; node 0 serves when no such node exists.
	tail := 0
	for ni := 1; ni < len(m.Nodes); ni++ {
		n := &m.Nodes[ni]
		if n.Flags.Has(mdl.NodeDisabled) {
			continue
		}
		if n.Parent == -1 && n.NextSibling == -1 && n.PrevSibling != -1 {
			tail = ni
		}
	}

	// Only nodes past the tail are orphan candidates. Rescanning earlier
	// nodes would splice an existing chain head back onto its own tail.
	changed := false
	for ni := tail + 1; ni < len(m.Nodes); ni++ {
		n := &m.Nodes[ni]
		if n.Flags.Has(mdl.NodeDisabled) {
			continue
		}
		if n.Parent != -1 || n.PrevSibling != -1 {
			continue
		}
		m.Nodes[tail].NextSibling = int16(ni)
		n.PrevSibling = int16(tail)
		tail = ni
		changed = true
	}
	return changed
}
