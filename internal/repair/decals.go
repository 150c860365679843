package repair

import (
	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mdlfix/pkg/mdl"
)

// decalUVChannel is the UV channel conventionally holding decal projection.
const decalUVChannel = 1

// stripDecalUVs zeroes the decal UV channel of every vertex in the selected
// meshes. Meshes whose vertices carry fewer than two UV channels are
// untouched (channel count is mesh-uniform, judged from the first vertex).
// A mesh only counts as changed when some UV actually held a nonzero value.
func stripDecalUVs(m *mdl.Model, sel MeshSelection) bool {
	changed := false
	for mi := range m.Meshes {
		if !sel.Includes(mi) {
			continue
		}
		mesh := &m.Meshes[mi]
		if len(mesh.Vertices) == 0 || len(mesh.Vertices[0].UVs) <= decalUVChannel {
			continue
		}
		for vi := range mesh.Vertices {
			uvs := mesh.Vertices[vi].UVs
			if len(uvs) <= decalUVChannel {
				continue
			}
			if uvs[decalUVChannel] != (mgl32.Vec2{}) {
				changed = true
			}
			uvs[decalUVChannel] = mgl32.Vec2{}
		}
	}
	return changed
}
