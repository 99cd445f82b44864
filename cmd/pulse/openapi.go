package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JaimeStill/pulse/internal/api"
	"github.com/JaimeStill/pulse/internal/config"
	"github.com/JaimeStill/pulse/pkg/openapi"
)

func openapiCmd() *cobra.Command {
	var (
		out     string
		version string
	)

	cmd := &cobra.Command{
		Use:   "openapi",
		Short: "Write the API's OpenAPI document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := &config.Config{Version: version}
			if err := cfg.API.Finalize(); err != nil {
				return fmt.Errorf("api config: %w", err)
			}
			if err := cfg.Engine.Finalize(); err != nil {
				return fmt.Errorf("engine config: %w", err)
			}

			runtime, domain := api.NewMemory(cfg.Engine, logger)
			spec := api.NewSpec(cfg, api.Groups(domain, runtime)...)

			if out == "-" {
				return openapi.Write(cmd.OutOrStdout(), spec)
			}

			if err := openapi.WriteJSON(spec, out); err != nil {
				return err
			}
			logger.Info("openapi document written", "path", out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "openapi.json", `output file, or "-" for stdout`)
	cmd.Flags().StringVar(&version, "version", "0.1.0", "API version recorded in the document")
	return cmd
}
