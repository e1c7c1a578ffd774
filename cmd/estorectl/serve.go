package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuemby/estore/pkg/entity"
	"github.com/cuemby/estore/pkg/estore"
	"github.com/cuemby/estore/pkg/index"
	"github.com/cuemby/estore/pkg/log"
	"github.com/cuemby/estore/pkg/metrics"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Open the store, register every linked entity type, and serve health and metrics endpoints",
	Long: `serve opens the store, registers every entity.Type this binary was
linked against (via its package-level init registrations), and blocks
serving Prometheus metrics and /healthz, /readyz until interrupted.

Only an entity type's IndexScalar indexes are registered automatically:
every other index kind needs application-supplied closures (group keys,
tokenizers, vector extraction) that a generic binary has no way to
recover from entity.IndexDescriptor metadata alone, so they are skipped
with a warning and left disabled. A binary that needs them compiled in
should call estore.Store.RegisterType itself instead of running serve.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	s, err := estore.Open(cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer s.Close()

	for _, t := range entity.All() {
		s.RegisterType(t, scalarDescriptors(t))
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/healthz", s.Health.HealthzHandler())
	mux.Handle("/readyz", s.Health.ReadyzHandler())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	log.WithComponent("estorectl").Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics and health endpoints")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.WithComponent("estorectl").Info().Msg("shutting down")
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}

// scalarDescriptors returns the subset of t's declared indexes whose
// kind needs no closure beyond Fields, the only kind a registry-driven
// binary can build without application code.
func scalarDescriptors(t *entity.Type) []*index.Descriptor {
	var out []*index.Descriptor
	for _, d := range t.Indexes {
		if d.Kind != entity.IndexScalar {
			log.WithComponent("estorectl").Warn().
				Str("entity_type", t.Name).
				Str("index", d.Name).
				Msg("skipping non-scalar index: requires an application-registered descriptor")
			continue
		}
		out = append(out, &index.Descriptor{IndexDescriptor: d})
	}
	return out
}
