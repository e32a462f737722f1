// File: internal/stacks/backend.go
// Brief: CDK stack definition for the load-balanced websocket backend.

// Package stacks declares the CloudFormation stacks infractl synthesizes.
package stacks

import (
	"strconv"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsec2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsecspatterns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awselasticloadbalancingv2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsroute53targets"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"

	"github.com/apl-lights/infra/internal/config"
)

// BackendStackProps carries the stack environment plus the service settings.
type BackendStackProps struct {
	awscdk.StackProps
	Settings *config.Settings
}

// BackendStack exposes the constructs other tooling needs handles to.
type BackendStack struct {
	awscdk.Stack
	Zone        awsroute53.IHostedZone
	Certificate awscertificatemanager.Certificate
	Service     awsecspatterns.ApplicationLoadBalancedFargateService
}

// NewBackendStack declares the whole backend in one pass: hosted zone lookup,
// DNS-validated certificate, VPC, ECS cluster, load-balanced Fargate service,
// and the alias record pointing the service name at the load balancer. Each
// resource only references handles created earlier in the pass, so the
// dependency order is the declaration order.
func NewBackendStack(scope constructs.Construct, id string, props *BackendStackProps) *BackendStack {
	var sprops awscdk.StackProps
	if props != nil {
		sprops = props.StackProps
	}
	stack := awscdk.NewStack(scope, &id, &sprops)
	settings := props.Settings

	zone := awsroute53.HostedZone_FromLookup(stack, jsii.String("HostedZone"), &awsroute53.HostedZoneProviderProps{
		DomainName: jsii.String(settings.DomainName),
	})

	cert := awscertificatemanager.NewCertificate(stack, jsii.String("BackendCert"), &awscertificatemanager.CertificateProps{
		DomainName: jsii.String(settings.ServiceFQDN()),
		Validation: awscertificatemanager.CertificateValidation_FromDns(zone),
	})

	vpc := awsec2.NewVpc(stack, jsii.String("BackendVpc"), &awsec2.VpcProps{
		MaxAzs: jsii.Number(float64(settings.MaxAZs)),
	})

	cluster := awsecs.NewCluster(stack, jsii.String("BackendCluster"), &awsecs.ClusterProps{
		Vpc: vpc,
	})

	service := awsecspatterns.NewApplicationLoadBalancedFargateService(stack, jsii.String("BackendService"), &awsecspatterns.ApplicationLoadBalancedFargateServiceProps{
		Cluster:            cluster,
		Cpu:                jsii.Number(float64(settings.CPUUnits)),
		MemoryLimitMiB:     jsii.Number(float64(settings.MemoryMiB)),
		DesiredCount:       jsii.Number(float64(settings.DesiredCount)),
		PublicLoadBalancer: jsii.Bool(true),
		Certificate:        cert,
		ListenerPort:       jsii.Number(config.ListenerPort),
		TaskImageOptions: &awsecspatterns.ApplicationLoadBalancedTaskImageOptions{
			Image:         awsecs.ContainerImage_FromRegistry(jsii.String(settings.ImageRef()), nil),
			ContainerPort: jsii.Number(config.ContainerPort),
			Environment: &map[string]*string{
				"OPENLIFTER__PORT": jsii.String(strconv.Itoa(config.ContainerPort)),
				"RUST_LOG":         jsii.String("info"),
			},
		},
	})

	service.TargetGroup().ConfigureHealthCheck(&awselasticloadbalancingv2.HealthCheck{
		Path: jsii.String(settings.HealthCheckPath),
	})

	// The service pattern is deliberately not given DomainName/DomainZone:
	// that would register a second record for the same name. The single
	// alias record below is the only DNS entry the stack owns.
	awsroute53.NewARecord(stack, jsii.String("BackendDNS"), &awsroute53.ARecordProps{
		Zone:       zone,
		RecordName: jsii.String(settings.RecordName),
		Target:     awsroute53.RecordTarget_FromAlias(awsroute53targets.NewLoadBalancerTarget(service.LoadBalancer(), nil)),
	})

	awscdk.NewCfnOutput(stack, jsii.String("ServiceURL"), &awscdk.CfnOutputProps{
		Value: jsii.String("https://" + settings.ServiceFQDN()),
	})
	awscdk.NewCfnOutput(stack, jsii.String("LoadBalancerDNS"), &awscdk.CfnOutputProps{
		Value: service.LoadBalancer().LoadBalancerDnsName(),
	})

	return &BackendStack{
		Stack:       stack,
		Zone:        zone,
		Certificate: cert,
		Service:     service,
	}
}
