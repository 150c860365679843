package repair

import (
	"github.com/tiendc/go-deepcopy"

	"github.com/Faultbox/mdlfix/pkg/mdl"
)

const passLODs = "fix-lods"

// canonicalFaceSetCount is the full complement of LOD and motion-blur slots.
const canonicalFaceSetCount = len(mdl.CanonicalFaceSetFlags)

// synthesizeLODs ensures every selected mesh carries the canonical six
// faceset slots. Missing slots are cloned from the first faceset's index
// buffer and draw flags, tagged with the slot's canonical flag combination.
// Meshes with no facesets at all are left alone: there is nothing to clone.
func synthesizeLODs(m *mdl.Model, sel MeshSelection, rec *recorder) bool {
	changed := false
	for mi := range m.Meshes {
		if !sel.Includes(mi) {
			continue
		}
		mesh := &m.Meshes[mi]
		if len(mesh.FaceSets) == 0 || len(mesh.FaceSets) >= canonicalFaceSetCount {
			continue
		}

		first := mesh.FaceSets[0]
		added := 0
		for slot := len(mesh.FaceSets); slot < canonicalFaceSetCount; slot++ {
			var clone mdl.FaceSet
			if err := deepcopy.Copy(&clone, &first); err != nil {
				rec.warnf(passLODs, "mesh %d: cloning faceset failed: %v", mi, err)
				break
			}
			clone.Flags = mdl.CanonicalFaceSetFlags[slot]
			mesh.FaceSets = append(mesh.FaceSets, clone)
			added++
		}

		if added > 0 {
			rec.infof(passLODs, "mesh %d: synthesized %d LOD facesets", mi, added)
			changed = true
		}
	}
	return changed
}
