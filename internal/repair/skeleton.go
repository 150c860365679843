package repair

import "github.com/Faultbox/mdlfix/pkg/mdl"

const passSkeleton = "complete-skeleton"

// completeSkeleton appends a bone for every node the skeleton is missing.
// The new bone's links are the node's own hierarchy links translated into
// skeleton-local positions; links to nodes not yet present become -1.
// Existing entries are never renumbered. Must run after remapNodes so the
// appended bones reference the final node order.
func completeSkeleton(m *mdl.Model, skel *mdl.Skeleton, name string, rec *recorder) bool {
	if len(skel.Bones) == 0 || len(skel.Bones) == len(m.Nodes) {
		return false
	}

	position := make(map[int32]int, len(skel.Bones))
	for bi := range skel.Bones {
		position[skel.Bones[bi].NodeIndex] = bi
	}

	local := func(nodeIndex int16) int16 {
		if nodeIndex < 0 {
			return -1
		}
		pos, ok := position[int32(nodeIndex)]
		if !ok {
			return -1
		}
		return int16(pos)
	}

	added := 0
	for ni := range m.Nodes {
		if _, present := position[int32(ni)]; present {
			continue
		}
		n := &m.Nodes[ni]
		bone := mdl.Bone{
			NodeIndex:   int32(ni),
			Parent:      local(n.Parent),
			FirstChild:  local(n.FirstChild),
			PrevSibling: local(n.PrevSibling),
			NextSibling: local(n.NextSibling),
		}

		pos := len(skel.Bones)
		skel.Bones = append(skel.Bones, bone)
		position[int32(ni)] = pos
		if bone.PrevSibling >= 0 {
			skel.Bones[bone.PrevSibling].NextSibling = int16(pos)
		}
		added++
	}

	if added > 0 {
		rec.infof(passSkeleton, "skeleton %q: appended %d missing bones (%d total)", name, added, len(skel.Bones))
	}
	return added > 0
}
