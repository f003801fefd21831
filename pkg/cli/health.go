package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/nimburion/docquery/pkg/health"
	"github.com/spf13/cobra"
)

func newHealthcheckCommand(a *app) *cobra.Command {
	var (
		readCollection string
		timeout        time.Duration
		degradedAfter  time.Duration
	)
	cmd := &cobra.Command{
		Use:   "healthcheck",
		Short: "Check connectivity to the document store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withRuntime(cmd, func(rt *runtime) error {
				registry := buildHealthRegistry(rt, readCollection, timeout, degradedAfter)
				result := registry.Check(cmd.Context())
				if err := writeOutput(cmd.OutOrStdout(), a.output, result); err != nil {
					return err
				}
				if result.Status == health.StatusUnhealthy {
					return fmt.Errorf("document store is %s", result.Status)
				}
				if result.Status == health.StatusDegraded {
					rt.log.Warn("document store is degraded", "checks", registry.List())
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&readCollection, "check-collection", "", "also run a read against this collection")
	cmd.Flags().DurationVar(&timeout, "timeout", health.DefaultTimeout, "timeout per check")
	cmd.Flags().DurationVar(&degradedAfter, "degraded-after", 0, "report the read check as degraded when slower than this (0 disables)")
	return cmd
}

func buildHealthRegistry(rt *runtime, readCollection string, timeout, degradedAfter time.Duration) *health.Registry {
	registry := health.NewRegistry()
	if rt.backend.Adapter != nil {
		registry.Register(health.NewAdapterChecker("store", rt.backend.Type, rt.backend.Adapter, timeout))
	}
	if readCollection != "" {
		coll := rt.db.Collection(readCollection)
		registry.Register(health.NewReadChecker("read", coll.Name(), func(ctx context.Context) error {
			_, err := coll.Query().First(ctx)
			return err
		}, timeout, degradedAfter))
	}
	return registry
}
