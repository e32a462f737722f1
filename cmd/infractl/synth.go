// synth.go declares the command the CDK toolkit invokes (via cdk.json) to
// produce the cloud assembly for the backend stack.
package main

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/apl-lights/infra/internal/config"
	"github.com/apl-lights/infra/internal/stacks"
)

func newSynthCommand(settings *config.Settings, logLevel *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Synthesize the CloudFormation stack for the backend service",
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
			logger.Info("synthesizing stack",
				zap.String("stack", settings.StackName),
				zap.String("service", settings.ServiceFQDN()),
				zap.String("image", settings.ImageRef()))

			defer jsii.Close()
			app := awscdk.NewApp(nil)
			stacks.NewBackendStack(app, settings.StackName, &stacks.BackendStackProps{
				StackProps: awscdk.StackProps{
					Env: cdkEnvironment(settings),
				},
				Settings: settings,
			})
			app.Synth(nil)
			return nil
		},
	}
	settings.AddFlags(cmd)
	return cmd
}

// cdkEnvironment pins the stack to a concrete account and region. The hosted
// zone lookup cannot run against an environment-agnostic stack, so both must
// be known at synth time.
func cdkEnvironment(settings *config.Settings) *awscdk.Environment {
	if settings.Account == "" || settings.Region == "" {
		return nil
	}
	return &awscdk.Environment{
		Account: jsii.String(settings.Account),
		Region:  jsii.String(settings.Region),
	}
}
