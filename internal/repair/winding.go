package repair

import "github.com/Faultbox/mdlfix/pkg/mdl"

const passWinding = "fix-winding"

// flipVoteThreshold is the fraction of flip votes a faceset needs before its
// winding is reversed.
const flipVoteThreshold = 0.75

// fixWinding decides once per faceset whether all its triangles wind the
// wrong way, and if so reverses them by swapping each triangle's second and
// third indices. The decision is a vote over the faceset's triangles: a
// triangle votes flip when its geometric face normal (counter-clockwise
// assumption) opposes the averaged vertex normal of its corners. With
// legacyVote every non-degenerate triangle votes flip unconditionally,
// reproducing the original fixer.
func fixWinding(m *mdl.Model, sel MeshSelection, legacyVote bool, rec *recorder) bool {
	changed := false
	for mi := range m.Meshes {
		if !sel.Includes(mi) {
			continue
		}
		mesh := &m.Meshes[mi]
		for fi := range mesh.FaceSets {
			fs := &mesh.FaceSets[fi]
			if fs.TriangleStrip {
				rec.warnf(passWinding, "mesh %d faceset %d is a triangle strip, winding fix unsupported", mi, fi)
				continue
			}
			if fixFaceSetWinding(mesh, fs, legacyVote, rec, mi, fi) {
				changed = true
			}
		}
	}
	return changed
}

func fixFaceSetWinding(mesh *mdl.Mesh, fs *mdl.FaceSet, legacyVote bool, rec *recorder, mi, fi int) bool {
	votes, total := 0, 0

voting:
	for i := 0; i+2 < len(fs.Indices); i += 3 {
		i0, i1, i2 := fs.Indices[i], fs.Indices[i+1], fs.Indices[i+2]
		// A degenerate first edge marks the end of meaningful data.
		if i0 == i1 {
			break
		}
		for _, idx := range [3]uint16{i0, i1, i2} {
			if int(idx) >= len(mesh.Vertices) {
				rec.warnf(passWinding, "mesh %d faceset %d index %d out of range, %d vertices", mi, fi, idx, len(mesh.Vertices))
				continue voting
			}
		}

		v0, v1, v2 := &mesh.Vertices[i0], &mesh.Vertices[i1], &mesh.Vertices[i2]
		total++
		if legacyVote {
			votes++
			continue
		}

		face := v2.Position.Sub(v0.Position).Cross(v1.Position.Sub(v0.Position))
		if face.Len() == 0 {
			continue
		}
		face = face.Normalize()
		avg := v0.Normal.Add(v1.Normal).Add(v2.Normal).Mul(1.0 / 3.0)
		if face.Dot(avg) < 0 {
			votes++
		}
	}

	if total == 0 || float64(votes)/float64(total) < flipVoteThreshold {
		return false
	}

	for i := 0; i+2 < len(fs.Indices); i += 3 {
		fs.Indices[i+1], fs.Indices[i+2] = fs.Indices[i+2], fs.Indices[i+1]
	}
	return true
}
