package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Faultbox/mdlfix/internal/batch"
	"github.com/Faultbox/mdlfix/internal/config"
)

var fixFlags struct {
	nodes       bool
	winding     string
	lods        string
	decals      string
	removeEmpty bool
	windingVote string
	workers     int
	outputDir   string
	dryRun      bool
}

var fixCmd = &cobra.Command{
	Use:   "fix <path>...",
	Short: "Repair models under the given files or directories",
	Long: `Repair every MDLB model found under the given paths, loose or inside
BNDL bundles. Files are rewritten only when a pass actually changed the
model; everything else is left byte-identical.

The per-mesh passes take a selection: "all", "none" or a comma separated
list of mesh indices, e.g. --winding=0,2.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := mergeFixFlags(cmd); err != nil {
			return err
		}

		repairOpts, err := cfg.Repair.Options()
		if err != nil {
			return err
		}
		opts := batch.Options{
			Repair:    repairOpts,
			Workers:   cfg.Batch.Workers,
			OutputDir: cfg.Batch.OutputDir,
			DryRun:    cfg.Batch.DryRun,
		}

		results, err := batch.Process(cmd.Context(), args, opts)
		if err != nil {
			return err
		}

		var models, repaired, written, failed int
		for _, res := range results {
			if res.Err != nil {
				failed++
				cmd.PrintErrf("%s: %v\n", res.Path, res.Err)
				continue
			}
			models += res.Models
			repaired += res.Repaired
			if res.Written {
				written++
			}
		}

		verb := "rewrote"
		if opts.DryRun {
			verb = "would rewrite"
		}
		cmd.Printf("%d models checked, %d repaired, %s %d files\n",
			models, repaired, verb, written)
		if failed > 0 {
			return fmt.Errorf("%d files failed", failed)
		}
		return nil
	},
}

// mergeFixFlags folds explicitly set command line flags over the loaded
// config, so flags win but an untouched flag keeps the file's value.
func mergeFixFlags(cmd *cobra.Command) error {
	flags := cmd.Flags()

	if flags.Changed("nodes") {
		cfg.Repair.FixNodes = fixFlags.nodes
	}
	if flags.Changed("winding") {
		sel, err := config.ParseSelection(fixFlags.winding)
		if err != nil {
			return fmt.Errorf("--winding: %w", err)
		}
		cfg.Repair.FixWinding = sel
	}
	if flags.Changed("lods") {
		sel, err := config.ParseSelection(fixFlags.lods)
		if err != nil {
			return fmt.Errorf("--lods: %w", err)
		}
		cfg.Repair.FixLODs = sel
	}
	if flags.Changed("decals") {
		sel, err := config.ParseSelection(fixFlags.decals)
		if err != nil {
			return fmt.Errorf("--decals: %w", err)
		}
		cfg.Repair.FixDecals = sel
	}
	if flags.Changed("remove-empty") {
		cfg.Repair.RemoveEmptyMeshes = fixFlags.removeEmpty
	}
	if flags.Changed("winding-vote") {
		cfg.Repair.WindingVote = fixFlags.windingVote
	}
	if flags.Changed("workers") {
		cfg.Batch.Workers = fixFlags.workers
	}
	if flags.Changed("out") {
		cfg.Batch.OutputDir = fixFlags.outputDir
	}
	if flags.Changed("dry-run") {
		cfg.Batch.DryRun = fixFlags.dryRun
	}
	return nil
}

func init() {
	flags := fixCmd.Flags()
	flags.BoolVar(&fixFlags.nodes, "nodes", true,
		"repair node flags, ordering, sibling chains and skeletons")
	flags.StringVar(&fixFlags.winding, "winding", "all",
		"meshes to run the winding fix on")
	flags.StringVar(&fixFlags.lods, "lods", "all",
		"meshes to synthesize canonical LOD facesets for")
	flags.StringVar(&fixFlags.decals, "decals", "none",
		"meshes to strip the decal UV channel from")
	flags.BoolVar(&fixFlags.removeEmpty, "remove-empty", false,
		"remove empty meshes and compact the material tables")
	flags.StringVar(&fixFlags.windingVote, "winding-vote", "normal",
		"winding vote mode: normal or legacy")
	flags.IntVarP(&fixFlags.workers, "workers", "j", 0,
		"concurrent files (0 = one per CPU)")
	flags.StringVarP(&fixFlags.outputDir, "out", "o", "",
		"write repaired files here instead of in place")
	flags.BoolVarP(&fixFlags.dryRun, "dry-run", "n", false,
		"report what would change without writing")

	rootCmd.AddCommand(fixCmd)
}
