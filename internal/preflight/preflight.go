// File: internal/preflight/preflight.go
// Brief: Pre-deploy checks for the external references the stack depends on.

// Package preflight verifies, with read-only API calls, that the target AWS
// account can satisfy the references the backend stack resolves at deploy
// time: the hosted zone the certificate validates against and the ECR
// repository the task image is pulled from. Nothing here mutates the account.
package preflight

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ecr"
	ecrtypes "github.com/aws/aws-sdk-go-v2/service/ecr/types"
	"github.com/aws/aws-sdk-go-v2/service/route53"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/apl-lights/infra/internal/config"
)

// Result is the outcome of a single check.
type Result struct {
	Name   string
	OK     bool
	Detail string
}

// ZoneLister is the slice of the Route53 API the zone check needs.
type ZoneLister interface {
	ListHostedZonesByName(ctx context.Context, params *route53.ListHostedZonesByNameInput, optFns ...func(*route53.Options)) (*route53.ListHostedZonesByNameOutput, error)
}

// RepositoryDescriber is the slice of the ECR API the image check needs.
type RepositoryDescriber interface {
	DescribeRepositories(ctx context.Context, params *ecr.DescribeRepositoriesInput, optFns ...func(*ecr.Options)) (*ecr.DescribeRepositoriesOutput, error)
}

// Runner executes the preflight checks against one AWS account.
type Runner struct {
	zones ZoneLister
	repos RepositoryDescriber
	log   *zap.Logger
}

// NewRunner builds a Runner from a resolved AWS client configuration.
func NewRunner(cfg aws.Config, log *zap.Logger) *Runner {
	return &Runner{
		zones: route53.NewFromConfig(cfg),
		repos: ecr.NewFromConfig(cfg),
		log:   log,
	}
}

// Run executes every check. A failed check is reported in its Result; an
// error is returned only when a check could not be carried out at all.
func (r *Runner) Run(ctx context.Context, settings *config.Settings) ([]Result, error) {
	zone, err := r.checkHostedZone(ctx, settings.DomainName)
	if err != nil {
		return nil, err
	}
	repo, err := r.checkImageRepository(ctx, settings)
	if err != nil {
		return nil, err
	}
	region := checkRegistryRegion(settings)
	return []Result{zone, repo, region}, nil
}

func (r *Runner) checkHostedZone(ctx context.Context, domain string) (Result, error) {
	out, err := r.zones.ListHostedZonesByName(ctx, &route53.ListHostedZonesByNameInput{
		DNSName:  aws.String(domain),
		MaxItems: aws.Int32(1),
	})
	if err != nil {
		return Result{}, errors.Wrapf(err, "list hosted zones for %q", domain)
	}
	want := domain + "."
	for _, hz := range out.HostedZones {
		if aws.ToString(hz.Name) != want {
			continue
		}
		r.log.Debug("hosted zone found",
			zap.String("zone", domain),
			zap.String("id", aws.ToString(hz.Id)))
		return Result{
			Name:   "hosted-zone",
			OK:     true,
			Detail: fmt.Sprintf("zone %s exists (%s)", domain, aws.ToString(hz.Id)),
		}, nil
	}
	return Result{
		Name:   "hosted-zone",
		OK:     false,
		Detail: fmt.Sprintf("no hosted zone named %s in the target account; certificate validation would stall", domain),
	}, nil
}

func (r *Runner) checkImageRepository(ctx context.Context, settings *config.Settings) (Result, error) {
	name, err := settings.ImageRepositoryName()
	if err != nil {
		return Result{Name: "image-repository", OK: false, Detail: err.Error()}, nil
	}
	_, err = r.repos.DescribeRepositories(ctx, &ecr.DescribeRepositoriesInput{
		RepositoryNames: []string{name},
	})
	var notFound *ecrtypes.RepositoryNotFoundException
	if errors.As(err, &notFound) {
		return Result{
			Name:   "image-repository",
			OK:     false,
			Detail: fmt.Sprintf("repository %s does not exist; tasks would fail to pull their image", name),
		}, nil
	}
	if err != nil {
		return Result{}, errors.Wrapf(err, "describe repository %q", name)
	}
	r.log.Debug("image repository found", zap.String("repository", name))
	return Result{
		Name:   "image-repository",
		OK:     true,
		Detail: fmt.Sprintf("repository %s exists", name),
	}, nil
}

func checkRegistryRegion(settings *config.Settings) Result {
	region, err := settings.ImageRegistryRegion()
	if err != nil {
		return Result{Name: "image-registry", OK: false, Detail: err.Error()}
	}
	if settings.Region != "" && region != settings.Region {
		return Result{
			Name:   "image-registry",
			OK:     false,
			Detail: fmt.Sprintf("registry region %s differs from deploy region %s", region, settings.Region),
		}
	}
	return Result{
		Name:   "image-registry",
		OK:     true,
		Detail: fmt.Sprintf("registry region %s matches the deploy region", region),
	}
}
