package repair

import (
	"bytes"

	"github.com/Faultbox/mdlfix/pkg/mdl"
)

const passCompact = "compact-collections"

// compactCollections drops empty meshes and rebuilds the material and GX
// list tables from the surviving meshes, value-deduplicating both and
// rewriting every mesh material index and material GX index. Entries no
// mesh references do not survive the rebuild.
//
// A mesh is empty when it has no vertices, no facesets, or a first faceset
// with no indices.
func compactCollections(m *mdl.Model, rec *recorder) bool {
	changed := false

	kept := m.Meshes[:0]
	for mi := range m.Meshes {
		mesh := &m.Meshes[mi]
		if meshIsEmpty(mesh) {
			rec.infof(passCompact, "removing empty mesh %d (material %d)", mi, mesh.MaterialIndex)
			changed = true
			continue
		}
		kept = append(kept, *mesh)
	}
	m.Meshes = kept

	var (
		materials []mdl.Material
		gxLists   []mdl.GXList
	)
	materialAt := make(map[mdl.Material]int)
	gxAt := make(map[string]int)

	dedupGX := func(index int32) int32 {
		if index < 0 {
			return -1
		}
		if int(index) >= len(m.GXLists) {
			rec.warnf(passCompact, "material references GX list %d, model has %d", index, len(m.GXLists))
			return -1
		}
		gx := m.GXLists[index]
		key := string(gx)
		if at, ok := gxAt[key]; ok {
			return int32(at)
		}
		at := len(gxLists)
		gxLists = append(gxLists, append(mdl.GXList(nil), gx...))
		gxAt[key] = at
		return int32(at)
	}

	for mi := range m.Meshes {
		mesh := &m.Meshes[mi]
		if mesh.MaterialIndex < 0 {
			continue
		}
		if int(mesh.MaterialIndex) >= len(m.Materials) {
			rec.warnf(passCompact, "mesh %d references material %d, model has %d", mi, mesh.MaterialIndex, len(m.Materials))
			mesh.MaterialIndex = -1
			changed = true
			continue
		}

		mat := m.Materials[mesh.MaterialIndex]
		mat.GXIndex = dedupGX(mat.GXIndex)

		at, ok := materialAt[mat]
		if !ok {
			at = len(materials)
			materials = append(materials, mat)
			materialAt[mat] = at
		}
		if mesh.MaterialIndex != int32(at) {
			mesh.MaterialIndex = int32(at)
			changed = true
		}
	}

	if !collectionsEqual(m.Materials, materials, m.GXLists, gxLists) {
		changed = true
	}
	m.Materials = materials
	m.GXLists = gxLists

	return changed
}

func meshIsEmpty(mesh *mdl.Mesh) bool {
	return len(mesh.Vertices) == 0 ||
		len(mesh.FaceSets) == 0 ||
		len(mesh.FaceSets[0].Indices) == 0
}

func collectionsEqual(oldMats, newMats []mdl.Material, oldGX, newGX []mdl.GXList) bool {
	if len(oldMats) != len(newMats) || len(oldGX) != len(newGX) {
		return false
	}
	for i := range oldMats {
		if oldMats[i] != newMats[i] {
			return false
		}
	}
	for i := range oldGX {
		if !bytes.Equal(oldGX[i], newGX[i]) {
			return false
		}
	}
	return true
}
