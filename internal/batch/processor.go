// Package batch discovers model assets on disk, loose or inside BNDL
// bundles, runs the repair passes on each and rewrites only what changed.
// Assets are independent, so the batch fans out across a bounded worker
// group; a failure in one asset never stops the rest.
package batch

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Faultbox/mdlfix/internal/logger"
	"github.com/Faultbox/mdlfix/internal/repair"
	"github.com/Faultbox/mdlfix/pkg/bundle"
	"github.com/Faultbox/mdlfix/pkg/mdl"
)

// Options controls a batch run.
type Options struct {
	// Repair is the pass configuration applied to every model.
	Repair repair.Options
	// Workers caps concurrent files; 0 means one per CPU.
	Workers int
	// OutputDir receives rewritten files under their base names; empty
	// means rewrite in place.
	OutputDir string
	// DryRun repairs in memory and reports, but writes nothing.
	DryRun bool
}

// Result is the outcome of processing one file.
type Result struct {
	Path string
	// Models is how many model assets the file held (a bundle may hold
	// several); zero means the file was not a model and was skipped.
	Models int
	// Repaired is how many of them the passes changed.
	Repaired int
	// Written reports whether the file was rewritten.
	Written bool
	// Err is the fatal error that abandoned this file, if any.
	Err error
}

// Process repairs every model found under the given paths. Directories are
// walked recursively. The returned results are in discovery order, one per
// candidate file; per-file errors are recorded, not returned.
func Process(ctx context.Context, paths []string, opts Options) ([]Result, error) {
	files, err := discover(paths)
	if err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	results := make([]Result, len(files))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[i] = processFile(path, opts)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

// discover expands the argument paths into a flat file list.
func discover(paths []string) ([]string, error) {
	var files []string
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", path, err)
		}
		if !info.IsDir() {
			files = append(files, path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				files = append(files, p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", path, err)
		}
	}
	return files, nil
}

func processFile(path string, opts Options) Result {
	res := Result{Path: path}

	data, err := os.ReadFile(path)
	if err != nil {
		res.Err = err
		return res
	}

	switch {
	case bundle.Sniff(data):
		res = processBundle(path, data, opts)
	case mdl.Sniff(data):
		res = processLooseModel(path, data, opts)
	default:
		logger.Debug("skipping non-model file", zap.String("path", path))
	}
	res.Path = path
	return res
}

func processLooseModel(path string, data []byte, opts Options) Result {
	res := Result{Models: 1}

	out, changed, err := repairModel(path, data, opts.Repair)
	if err != nil {
		res.Err = err
		return res
	}
	if !changed {
		return res
	}
	res.Repaired = 1

	if opts.DryRun {
		return res
	}
	if err := writeOutput(path, out, opts.OutputDir); err != nil {
		res.Err = err
		return res
	}
	res.Written = true
	return res
}

func processBundle(path string, data []byte, opts Options) Result {
	var res Result

	bnd, err := bundle.Read(data)
	if err != nil {
		res.Err = fmt.Errorf("reading bundle: %w", err)
		return res
	}

	for i := range bnd.Entries {
		entry := &bnd.Entries[i]
		if !mdl.Sniff(entry.Data) {
			continue
		}
		res.Models++

		name := path + ":" + entry.Name
		out, changed, err := repairModel(name, entry.Data, opts.Repair)
		if err != nil {
			// The entry stays byte-identical; the rest of the bundle
			// is still processed.
			logger.Warn("abandoning bundle entry",
				zap.String("entry", name), zap.Error(err))
			continue
		}
		if changed {
			entry.Data = out
			res.Repaired++
		}
	}

	if res.Repaired == 0 || opts.DryRun {
		return res
	}

	out, err := bnd.Write()
	if err != nil {
		res.Err = fmt.Errorf("writing bundle: %w", err)
		return res
	}
	if err := writeOutput(path, out, opts.OutputDir); err != nil {
		res.Err = err
		return res
	}
	res.Written = true
	return res
}

// repairModel decodes one model, runs the passes and re-encodes when they
// changed anything. The input bytes are returned untouched otherwise.
func repairModel(name string, data []byte, opts repair.Options) ([]byte, bool, error) {
	model, err := mdl.Decode(data)
	if err != nil {
		return nil, false, fmt.Errorf("decoding: %w", err)
	}

	result := repair.Run(model, opts)
	renderDiags(name, result.Diags)
	if !result.Changed {
		return data, false, nil
	}

	out, err := mdl.Encode(model)
	if err != nil {
		return nil, false, fmt.Errorf("encoding: %w", err)
	}
	return out, true, nil
}

// renderDiags forwards the core's structured diagnostics to the log.
func renderDiags(name string, diags []repair.Diag) {
	for _, d := range diags {
		fields := []zap.Field{zap.String("model", name), zap.String("pass", d.Pass)}
		switch d.Level {
		case repair.LevelWarn:
			logger.Warn(d.Message, fields...)
		default:
			logger.Debug(d.Message, fields...)
		}
	}
}

func writeOutput(inPath string, data []byte, outputDir string) error {
	outPath := inPath
	if outputDir != "" {
		if err := os.MkdirAll(outputDir, 0755); err != nil {
			return err
		}
		outPath = filepath.Join(outputDir, filepath.Base(inPath))
	}
	return os.WriteFile(outPath, data, 0644)
}
