// Package repair implements the model integrity repair passes: node role
// classification and reordering, cross-reference remapping, sibling chain and
// skeleton completion, faceset winding correction, canonical LOD slot
// synthesis, decal UV stripping and material table compaction.
//
// Every pass mutates the model in place and reports whether it changed
// anything; the per-pass flags OR together into the re-encode decision.
// Passes emit structured diagnostics instead of writing to a log directly.
package repair

import "github.com/Faultbox/mdlfix/pkg/mdl"

// MeshSelection names the meshes a per-mesh pass applies to. A nil or empty
// index set means every mesh.
type MeshSelection struct {
	Enabled bool
	Indices []int
}

// SelectAll returns a selection covering every mesh.
func SelectAll() MeshSelection {
	return MeshSelection{Enabled: true}
}

// SelectMeshes returns a selection covering only the given mesh indices.
func SelectMeshes(indices ...int) MeshSelection {
	return MeshSelection{Enabled: true, Indices: indices}
}

// Includes reports whether mesh i is covered by the selection.
func (s MeshSelection) Includes(i int) bool {
	if !s.Enabled {
		return false
	}
	if len(s.Indices) == 0 {
		return true
	}
	for _, idx := range s.Indices {
		if idx == i {
			return true
		}
	}
	return false
}

// Options selects which repair passes run and how.
type Options struct {
	// FixNodes runs classification, enabled-first reordering, reference
	// remapping, sibling chain repair and skeleton completion.
	FixNodes bool

	// FixWinding corrects faceset triangle winding for the selected meshes.
	FixWinding MeshSelection

	// LegacyWindingVote reproduces the original fixer's voting bug: every
	// non-degenerate triangle counts as a flip vote regardless of normal
	// agreement. The default gates votes on the face normal opposing the
	// averaged vertex normal, which is also the only idempotent behavior.
	LegacyWindingVote bool

	// FixLODs synthesizes the canonical six faceset slots for the selected
	// meshes.
	FixLODs MeshSelection

	// FixDecals zeroes the decal UV channel for the selected meshes.
	FixDecals MeshSelection

	// RemoveEmptyMeshes runs the collection compactor: empty meshes are
	// dropped and the material and GX list tables are value-deduplicated.
	RemoveEmptyMeshes bool
}

// Result is the outcome of running the requested passes on one model.
type Result struct {
	// Changed reports whether any pass modified the model; it is the
	// caller's re-encode signal.
	Changed bool

	// Diags holds the structured diagnostic events, in emission order.
	Diags []Diag
}

// Run executes the requested passes on m in their fixed order. Later passes
// depend on invariants established by earlier ones, so the order is not
// configurable.
func Run(m *mdl.Model, opts Options) Result {
	rec := &recorder{}
	changed := false

	// Node indices are stored in int16 link fields; a sequence past that
	// bound cannot be remapped without truncating indices.
	if opts.FixNodes && len(m.Nodes) > mdl.MaxNodes {
		rec.warnf(passRemap, "model has %d nodes, limit is %d, node repair skipped", len(m.Nodes), mdl.MaxNodes)
		opts.FixNodes = false
	}

	if opts.FixNodes {
		flagged, refs := classifyNodes(m, rec)
		remapped := remapNodes(m, refs, rec)
		chained := repairSiblingChain(m)
		base := completeSkeleton(m, &m.BaseSkeleton, "base", rec)
		all := completeSkeleton(m, &m.AllSkeleton, "all", rec)
		changed = changed || flagged || remapped || chained || base || all
	}

	if opts.FixWinding.Enabled {
		changed = fixWinding(m, opts.FixWinding, opts.LegacyWindingVote, rec) || changed
	}
	if opts.FixLODs.Enabled {
		changed = synthesizeLODs(m, opts.FixLODs, rec) || changed
	}
	if opts.FixDecals.Enabled {
		changed = stripDecalUVs(m, opts.FixDecals) || changed
	}
	if opts.RemoveEmptyMeshes {
		changed = compactCollections(m, rec) || changed
	}

	return Result{Changed: changed, Diags: rec.events}
}
