package main

import (
	"fmt"
	"os"

	"github.com/cuemby/estore/pkg/config"
	"github.com/cuemby/estore/pkg/index"
	"github.com/spf13/cobra"
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Apply an IndexBuildJob manifest",
	Long: `apply reads a YAML manifest in the apiVersion/kind/metadata/spec
envelope and, for the only kind it currently understands
(IndexBuildJob), drives a backfill exactly as 'index build' would.

Example:
  estorectl apply -f backfill-orders.yaml`,
	RunE: runApply,
}

func init() {
	applyCmd.Flags().StringP("file", "f", "", "YAML manifest to apply (required)")
	_ = applyCmd.MarkFlagRequired("file")
}

func runApply(cmd *cobra.Command, args []string) error {
	filename, _ := cmd.Flags().GetString("file")

	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filename, err)
	}

	manifest, err := config.ParseManifest(data)
	if err != nil {
		return err
	}

	switch manifest.Kind {
	case config.KindIndexBuildJob:
		return applyIndexBuildJob(cmd, manifest)
	default:
		return fmt.Errorf("estorectl: unsupported manifest kind %q", manifest.Kind)
	}
}

func applyIndexBuildJob(cmd *cobra.Command, manifest *config.Manifest) error {
	job, err := manifest.BuildJob()
	if err != nil {
		return err
	}

	s, err := openRegisteredStore(cmd)
	if err != nil {
		return err
	}
	defer s.Close()

	builder := s.Builder(job.EntityType)
	if builder == nil {
		return fmt.Errorf("estorectl: unknown entity type %q", job.EntityType)
	}
	if job.BatchSize > 0 {
		builder.BatchSize = job.BatchSize
	}

	var targets []*index.Descriptor
	for _, name := range job.Indexes {
		d := s.Index(job.EntityType, name)
		if d == nil {
			return fmt.Errorf("estorectl: %s has no registered scalar index %q", job.EntityType, name)
		}
		targets = append(targets, d)
	}

	if err := builder.Start(targets, job.ClearFirst); err != nil {
		return fmt.Errorf("job %q failed: %w", job.Name, err)
	}
	fmt.Printf("job %q: %s indexes %v backfilled and readable\n", job.Name, job.EntityType, job.Indexes)
	return nil
}
