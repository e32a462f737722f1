// preflight.go declares the read-only account checks run before `cdk deploy`.
package main

import (
	"fmt"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apl-lights/infra/internal/config"
	"github.com/apl-lights/infra/internal/preflight"
)

func newPreflightCommand(settings *config.Settings, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Verify the hosted zone and image repository exist before deploying",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(*logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			if err := settings.Validate(); err != nil {
				return err
			}

			ctx := cmd.Context()
			opts := []func(*awsconfig.LoadOptions) error{}
			if settings.Region != "" {
				opts = append(opts, awsconfig.WithRegion(settings.Region))
			}
			cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
			if err != nil {
				return errors.Wrap(err, "load AWS configuration")
			}

			runner := preflight.NewRunner(cfg, logger)
			results, err := runner.Run(ctx, settings)
			if err != nil {
				return err
			}

			pass := color.New(color.FgGreen).SprintFunc()
			fail := color.New(color.FgRed).SprintFunc()
			failed := 0
			for _, res := range results {
				status := pass("PASS")
				if !res.OK {
					status = fail("FAIL")
					failed++
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-16s %s\n", status, res.Name, res.Detail)
			}
			if failed > 0 {
				return errors.Errorf("%d of %d preflight checks failed", failed, len(results))
			}
			logger.Info("preflight checks passed", zap.Int("checks", len(results)))
			return nil
		},
	}
	settings.AddFlags(cmd)
	return cmd
}
