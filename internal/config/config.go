// File: internal/config/config.go
// Brief: Typed stack settings shared by infractl's synth and preflight commands.

// Package config defines the settings plumbing for the apl-lights
// infrastructure CLI, translating Cobra/Viper flag values into a strongly
// typed struct that the stack definition and the preflight checks consume.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Fixed service ports. The load balancer always terminates TLS on 443 and
// the backend container always listens on 9001; neither is a tunable.
const (
	ListenerPort  = 443
	ContainerPort = 9001
)

// Defaults for the tunable settings.
const (
	DefaultStackName       = "ws-backend"
	DefaultDomainName      = "apl-lights.com"
	DefaultRecordName      = "server-app"
	DefaultImageRepository = "123456789012.dkr.ecr.ap-southeast-2.amazonaws.com/ws-server-app"
	DefaultCPUUnits        = 256
	DefaultMemoryMiB       = 512
	DefaultDesiredCount    = 1
	DefaultHealthCheckPath = "/health"
	DefaultMaxAZs          = 2
)

// Settings holds all stack configuration used by infractl.
//
// RecordName is the single DNS label under DomainName; the service FQDN and
// the certificate domain are both derived from it, so the two can never
// drift apart.
type Settings struct {
	StackName       string
	DomainName      string
	RecordName      string
	ImageRepository string
	ImageTag        string
	CPUUnits        int
	MemoryMiB       int
	DesiredCount    int
	HealthCheckPath string
	MaxAZs          int
	Account         string
	Region          string
}

// NewSettings returns Settings with defaults applied. Account and region
// default to the values the CDK toolkit exports for the active credentials.
func NewSettings() *Settings {
	return &Settings{
		StackName:       DefaultStackName,
		DomainName:      DefaultDomainName,
		RecordName:      DefaultRecordName,
		ImageRepository: DefaultImageRepository,
		CPUUnits:        DefaultCPUUnits,
		MemoryMiB:       DefaultMemoryMiB,
		DesiredCount:    DefaultDesiredCount,
		HealthCheckPath: DefaultHealthCheckPath,
		MaxAZs:          DefaultMaxAZs,
		Account:         os.Getenv("CDK_DEFAULT_ACCOUNT"),
		Region:          os.Getenv("CDK_DEFAULT_REGION"),
	}
}

// AddFlags binds configuration flags to the provided Cobra command.
func (s *Settings) AddFlags(cmd *cobra.Command) {
	s.BindFlags(cmd.Flags())
}

// BindFlags attaches stack flags to an arbitrary FlagSet.
func (s *Settings) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&s.StackName, "stack-name", s.StackName, "Name of the CloudFormation stack")
	fs.StringVar(&s.DomainName, "domain", s.DomainName, "Hosted zone the service is published under")
	fs.StringVar(&s.RecordName, "record-name", s.RecordName, "DNS label for the service inside the hosted zone")
	fs.StringVar(&s.ImageRepository, "image-repository", s.ImageRepository, "ECR repository URI the service image is pulled from")
	fs.StringVar(&s.ImageTag, "image-tag", s.ImageTag, "Image tag to deploy; empty means the registry default (latest)")
	fs.IntVar(&s.CPUUnits, "cpu", s.CPUUnits, "Fargate task CPU units")
	fs.IntVar(&s.MemoryMiB, "memory", s.MemoryMiB, "Fargate task memory limit in MiB")
	fs.IntVar(&s.DesiredCount, "desired-count", s.DesiredCount, "Number of tasks the service keeps running")
	fs.StringVar(&s.HealthCheckPath, "health-check-path", s.HealthCheckPath, "Path the target group probes on the container")
	fs.IntVar(&s.MaxAZs, "max-azs", s.MaxAZs, "Number of availability zones the VPC spans")
	fs.StringVar(&s.Account, "account", s.Account, "AWS account the stack deploys to")
	fs.StringVar(&s.Region, "region", s.Region, "AWS region the stack deploys to")
}

// Validate checks the settings for values the stack cannot synthesize from.
func (s *Settings) Validate() error {
	if s.StackName == "" {
		return fmt.Errorf("stack name must not be empty")
	}
	if s.DomainName == "" {
		return fmt.Errorf("domain must not be empty")
	}
	if s.RecordName == "" {
		return fmt.Errorf("record name must not be empty")
	}
	if strings.Contains(s.RecordName, ".") {
		return fmt.Errorf("record name %q must be a single label inside %s, not a dotted name", s.RecordName, s.DomainName)
	}
	if _, err := s.ImageRepositoryName(); err != nil {
		return err
	}
	if s.CPUUnits <= 0 {
		return fmt.Errorf("cpu units must be positive, got %d", s.CPUUnits)
	}
	if s.MemoryMiB <= 0 {
		return fmt.Errorf("memory must be positive, got %d MiB", s.MemoryMiB)
	}
	if s.DesiredCount <= 0 {
		return fmt.Errorf("desired count must be positive, got %d", s.DesiredCount)
	}
	if !strings.HasPrefix(s.HealthCheckPath, "/") {
		return fmt.Errorf("health check path %q must start with /", s.HealthCheckPath)
	}
	if s.MaxAZs < 2 {
		return fmt.Errorf("the load balancer needs subnets in at least 2 availability zones, got %d", s.MaxAZs)
	}
	return nil
}

// ServiceFQDN returns the fully qualified domain name the service is
// reachable at.
func (s *Settings) ServiceFQDN() string {
	return s.RecordName + "." + s.DomainName
}

// ImageRef returns the container image reference handed to the task
// definition, including the tag when one is set.
func (s *Settings) ImageRef() string {
	if s.ImageTag == "" {
		return s.ImageRepository
	}
	return s.ImageRepository + ":" + s.ImageTag
}

// ImageRepositoryName returns the repository path within the ECR registry,
// i.e. the part after the registry host.
func (s *Settings) ImageRepositoryName() (string, error) {
	host, name, ok := strings.Cut(s.ImageRepository, "/")
	if !ok || name == "" {
		return "", fmt.Errorf("image repository %q must be of the form <registry-host>/<name>", s.ImageRepository)
	}
	if !strings.Contains(host, ".dkr.ecr.") {
		return "", fmt.Errorf("registry host %q is not an ECR endpoint", host)
	}
	return name, nil
}

// ImageRegistryRegion extracts the region encoded in the ECR registry host.
func (s *Settings) ImageRegistryRegion() (string, error) {
	host, _, _ := strings.Cut(s.ImageRepository, "/")
	_, rest, ok := strings.Cut(host, ".dkr.ecr.")
	if !ok {
		return "", fmt.Errorf("registry host %q is not an ECR endpoint", host)
	}
	region, _, ok := strings.Cut(rest, ".")
	if !ok || region == "" {
		return "", fmt.Errorf("registry host %q does not encode a region", host)
	}
	return region, nil
}
