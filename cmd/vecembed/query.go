package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) queryCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "query [flags] TEXT",
		Short: "Embed a single text and print its vector",
		Long:  `Embed one literal text and print the vector as a compact JSON array.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if f.metricsFile != "" {
				defer a.writeMetrics(f.metricsFile)
			}

			svc, cleanup, err := a.newPipeline(cmd, f)
			if err != nil {
				return err
			}
			defer cleanup()

			vec, err := svc.Query(cmd.Context(), args[0])
			if err != nil {
				return err //nolint:wrapcheck // pipeline wraps
			}

			data, err := json.Marshal(vec)
			if err != nil {
				return fmt.Errorf("encode vector: %w", err)
			}
			if _, err := fmt.Fprintln(a.stdout, string(data)); err != nil {
				return fmt.Errorf("write output: %w", err)
			}
			return nil
		},
	}
	a.backendFlags(cmd, &f)
	return cmd
}
