package batch

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/Faultbox/mdlfix/internal/logger"
	"github.com/Faultbox/mdlfix/internal/repair"
	"github.com/Faultbox/mdlfix/pkg/bundle"
	"github.com/Faultbox/mdlfix/pkg/mdl"
)

func TestMain(m *testing.M) {
	if err := logger.InitWithFileConfig("error", logger.FileConfig{}, false); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// lodModel returns a model whose only mesh has a single faceset, so the LOD
// pass always changes it.
func lodModel() *mdl.Model {
	return &mdl.Model{
		Nodes: []mdl.Node{{
			Name:        "root",
			Flags:       mdl.NodeBone,
			Parent:      -1,
			FirstChild:  -1,
			PrevSibling: -1,
			NextSibling: -1,
			Scale:       mgl32.Vec3{1, 1, 1},
		}},
		Meshes: []mdl.Mesh{{
			MaterialIndex: -1,
			NodeIndex:     0,
			Vertices: []mdl.Vertex{
				{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, UVs: []mgl32.Vec2{{0, 0}}},
				{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, UVs: []mgl32.Vec2{{1, 0}}},
				{Position: mgl32.Vec3{0, 0, 1}, Normal: mgl32.Vec3{0, 1, 0}, UVs: []mgl32.Vec2{{0, 1}}},
			},
			FaceSets: []mdl.FaceSet{{CullBackfaces: true, Indices: []uint16{0, 1, 2}}},
		}},
	}
}

// cleanModel returns a model no pass changes.
func cleanModel() *mdl.Model {
	m := lodModel()
	first := m.Meshes[0].FaceSets[0]
	sets := make([]mdl.FaceSet, 6)
	for i := range sets {
		sets[i] = first
		sets[i].Flags = mdl.CanonicalFaceSetFlags[i]
		sets[i].Indices = append([]uint16(nil), first.Indices...)
	}
	m.Meshes[0].FaceSets = sets
	return m
}

func encodeOrDie(t *testing.T, m *mdl.Model) []byte {
	t.Helper()
	data, err := mdl.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func allPasses() Options {
	return Options{
		Repair: repair.Options{
			FixNodes:          true,
			FixWinding:        repair.SelectAll(),
			FixLODs:           repair.SelectAll(),
			FixDecals:         repair.SelectAll(),
			RemoveEmptyMeshes: true,
		},
		Workers: 2,
	}
}

func TestProcessLooseModel(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "broken.mdl", encodeOrDie(t, lodModel()))

	results, err := Process(context.Background(), []string{dir}, allPasses())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if res.Models != 1 || res.Repaired != 1 || !res.Written {
		t.Fatalf("got %+v, want 1 model repaired and written", res)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	fixed, err := mdl.Decode(data)
	if err != nil {
		t.Fatalf("decoding rewritten model: %v", err)
	}
	if got := len(fixed.Meshes[0].FaceSets); got != 6 {
		t.Fatalf("rewritten mesh has %d facesets, want 6", got)
	}
}

func TestProcessLeavesCleanFileAlone(t *testing.T) {
	dir := t.TempDir()
	orig := encodeOrDie(t, cleanModel())
	path := writeFile(t, dir, "clean.mdl", orig)

	results, err := Process(context.Background(), []string{path}, allPasses())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	res := results[0]
	if res.Models != 1 || res.Repaired != 0 || res.Written {
		t.Fatalf("got %+v, want untouched", res)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(orig, after) {
		t.Fatal("clean file was rewritten")
	}
}

func TestProcessSkipsNonModelFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", []byte("not a model"))

	results, err := Process(context.Background(), []string{dir}, allPasses())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if results[0].Models != 0 || results[0].Err != nil {
		t.Fatalf("got %+v, want skipped", results[0])
	}
}

func TestProcessBundle(t *testing.T) {
	dir := t.TempDir()

	bnd := &bundle.Bundle{Entries: []bundle.Entry{
		{Name: "broken.mdl", Data: encodeOrDie(t, lodModel())},
		{Name: "clean.mdl", Data: encodeOrDie(t, cleanModel())},
		{Name: "readme.txt", Data: []byte("bundled text")},
	}}
	raw, err := bnd.Write()
	if err != nil {
		t.Fatalf("writing bundle: %v", err)
	}
	path := writeFile(t, dir, "assets.bndl", raw)

	results, err := Process(context.Background(), []string{path}, allPasses())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	res := results[0]
	if res.Err != nil {
		t.Fatalf("result error: %v", res.Err)
	}
	if res.Models != 2 || res.Repaired != 1 || !res.Written {
		t.Fatalf("got %+v, want 2 models with 1 repaired", res)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	out, err := bundle.Read(data)
	if err != nil {
		t.Fatalf("reading rewritten bundle: %v", err)
	}
	entry, err := out.Get("broken.mdl")
	if err != nil {
		t.Fatal(err)
	}
	fixed, err := mdl.Decode(entry)
	if err != nil {
		t.Fatalf("decoding repaired entry: %v", err)
	}
	if got := len(fixed.Meshes[0].FaceSets); got != 6 {
		t.Fatalf("repaired entry has %d facesets, want 6", got)
	}
	if text, err := out.Get("readme.txt"); err != nil || string(text) != "bundled text" {
		t.Fatalf("non-model entry not preserved: %q, %v", text, err)
	}
}

func TestProcessDryRun(t *testing.T) {
	dir := t.TempDir()
	orig := encodeOrDie(t, lodModel())
	path := writeFile(t, dir, "broken.mdl", orig)

	opts := allPasses()
	opts.DryRun = true
	results, err := Process(context.Background(), []string{path}, opts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	res := results[0]
	if res.Repaired != 1 || res.Written {
		t.Fatalf("got %+v, want repaired but not written", res)
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(orig, after) {
		t.Fatal("dry run modified the input")
	}
}

func TestProcessOutputDir(t *testing.T) {
	dir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "fixed")
	orig := encodeOrDie(t, lodModel())
	path := writeFile(t, dir, "broken.mdl", orig)

	opts := allPasses()
	opts.OutputDir = outDir
	results, err := Process(context.Background(), []string{path}, opts)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if !results[0].Written {
		t.Fatalf("got %+v, want written", results[0])
	}

	after, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(orig, after) {
		t.Fatal("input modified despite output dir")
	}
	if _, err := os.Stat(filepath.Join(outDir, "broken.mdl")); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}

func TestProcessCorruptModelAbandonsFileOnly(t *testing.T) {
	dir := t.TempDir()

	// Valid magic and version, truncated body: sniffs as a model but fails
	// to decode.
	corrupt := append([]byte("MDLB"), 0x10, 0, 0, 0)
	corruptPath := writeFile(t, dir, "corrupt.mdl", corrupt)
	writeFile(t, dir, "broken.mdl", encodeOrDie(t, lodModel()))

	results, err := Process(context.Background(), []string{dir}, allPasses())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}

	var sawCorrupt, sawRepaired bool
	for _, res := range results {
		if res.Path == corruptPath {
			sawCorrupt = true
			if res.Err == nil {
				t.Fatal("corrupt model did not record an error")
			}
			continue
		}
		sawRepaired = res.Repaired == 1 && res.Written
	}
	if !sawCorrupt || !sawRepaired {
		t.Fatalf("batch did not continue past corrupt file: %+v", results)
	}

	after, err := os.ReadFile(corruptPath)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(corrupt, after) {
		t.Fatal("corrupt input was modified")
	}
}

func TestProcessMissingPath(t *testing.T) {
	_, err := Process(context.Background(), []string{"/nonexistent/assets"}, allPasses())
	if err == nil {
		t.Fatal("expected error for missing path")
	}
}
