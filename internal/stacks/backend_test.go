// backend_test.go verifies the shape of the synthesized backend template:
// resource counts, the fixed ports, the shared DNS label, and that sizing
// changes never disturb the identity of neighboring resources.
package stacks

import (
	"reflect"
	"sort"
	"testing"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/assertions"
	"github.com/aws/jsii-runtime-go"

	"github.com/apl-lights/infra/internal/config"
)

const (
	testAccount = "123456789012"
	testRegion  = "ap-southeast-2"

	// Pre-seeded lookup result so HostedZone_FromLookup never calls AWS.
	zoneLookupKey = "hosted-zone:account=" + testAccount + ":domainName=apl-lights.com:region=" + testRegion
)

func testSettings() *config.Settings {
	s := config.NewSettings()
	s.Account = testAccount
	s.Region = testRegion
	return s
}

func synthTemplate(t *testing.T, settings *config.Settings) assertions.Template {
	t.Helper()
	app := awscdk.NewApp(&awscdk.AppProps{
		Context: &map[string]interface{}{
			zoneLookupKey: map[string]interface{}{
				"Id":   "/hostedzone/Z0123456789ABCDEFGHIJ",
				"Name": "apl-lights.com.",
			},
		},
	})
	stack := NewBackendStack(app, settings.StackName, &BackendStackProps{
		StackProps: awscdk.StackProps{
			Env: &awscdk.Environment{
				Account: jsii.String(settings.Account),
				Region:  jsii.String(settings.Region),
			},
		},
		Settings: settings,
	})
	return assertions.Template_FromStack(stack.Stack, nil)
}

func logicalIDs(t *testing.T, template assertions.Template, resourceType string) []string {
	t.Helper()
	found := template.FindResources(jsii.String(resourceType), nil)
	ids := make([]string, 0, len(*found))
	for id := range *found {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func TestBackendStackResourceCounts(t *testing.T) {
	template := synthTemplate(t, testSettings())

	template.ResourceCountIs(jsii.String("AWS::CertificateManager::Certificate"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::EC2::VPC"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::ECS::Cluster"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::ECS::Service"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::Route53::RecordSet"), jsii.Number(1))
	template.ResourceCountIs(jsii.String("AWS::ElasticLoadBalancingV2::LoadBalancer"), jsii.Number(1))
}

func TestListenerPortIsFixed(t *testing.T) {
	settings := testSettings()
	settings.CPUUnits = 1024
	settings.MemoryMiB = 2048
	settings.DesiredCount = 4
	template := synthTemplate(t, settings)

	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::Listener"), map[string]interface{}{
		"Port":     443,
		"Protocol": "HTTPS",
	})
}

func TestContainerPortIsFixed(t *testing.T) {
	template := synthTemplate(t, testSettings())

	template.HasResourceProperties(jsii.String("AWS::ECS::TaskDefinition"), map[string]interface{}{
		"ContainerDefinitions": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"PortMappings": assertions.Match_ArrayWith(&[]interface{}{
					assertions.Match_ObjectLike(&map[string]interface{}{
						"ContainerPort": 9001,
					}),
				}),
				"Environment": assertions.Match_ArrayWith(&[]interface{}{
					assertions.Match_ObjectLike(&map[string]interface{}{
						"Name":  "OPENLIFTER__PORT",
						"Value": "9001",
					}),
				}),
			}),
		}),
	})
}

func TestCertificateAndRecordShareName(t *testing.T) {
	template := synthTemplate(t, testSettings())

	template.HasResourceProperties(jsii.String("AWS::CertificateManager::Certificate"), map[string]interface{}{
		"DomainName":       "server-app.apl-lights.com",
		"ValidationMethod": "DNS",
	})
	template.HasResourceProperties(jsii.String("AWS::Route53::RecordSet"), map[string]interface{}{
		"Name": "server-app.apl-lights.com.",
		"Type": "A",
	})
}

func TestHealthCheckPathDefault(t *testing.T) {
	template := synthTemplate(t, testSettings())

	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::TargetGroup"), map[string]interface{}{
		"HealthCheckPath": "/health",
	})
}

func TestHealthCheckPathOverride(t *testing.T) {
	settings := testSettings()
	settings.HealthCheckPath = "/livez"
	template := synthTemplate(t, settings)

	template.HasResourceProperties(jsii.String("AWS::ElasticLoadBalancingV2::TargetGroup"), map[string]interface{}{
		"HealthCheckPath": "/livez",
	})
}

func TestImageTagFlowsIntoTaskDefinition(t *testing.T) {
	settings := testSettings()
	settings.ImageTag = "v2.0.1"
	template := synthTemplate(t, settings)

	template.HasResourceProperties(jsii.String("AWS::ECS::TaskDefinition"), map[string]interface{}{
		"ContainerDefinitions": assertions.Match_ArrayWith(&[]interface{}{
			assertions.Match_ObjectLike(&map[string]interface{}{
				"Image": settings.ImageRepository + ":v2.0.1",
			}),
		}),
	})
}

func TestSizingDoesNotDisturbOtherResources(t *testing.T) {
	base := synthTemplate(t, testSettings())

	resized := testSettings()
	resized.CPUUnits = 512
	resized.MemoryMiB = 1024
	resized.DesiredCount = 3
	other := synthTemplate(t, resized)

	for _, resourceType := range []string{
		"AWS::CertificateManager::Certificate",
		"AWS::EC2::VPC",
		"AWS::ECS::Cluster",
		"AWS::Route53::RecordSet",
		"AWS::ElasticLoadBalancingV2::LoadBalancer",
	} {
		baseIDs := logicalIDs(t, base, resourceType)
		otherIDs := logicalIDs(t, other, resourceType)
		if !reflect.DeepEqual(baseIDs, otherIDs) {
			t.Fatalf("%s identity changed with task sizing: %v vs %v", resourceType, baseIDs, otherIDs)
		}
	}
}

func TestSynthIsDeterministic(t *testing.T) {
	first := synthTemplate(t, testSettings())
	second := synthTemplate(t, testSettings())

	if !reflect.DeepEqual(*first.ToJSON(), *second.ToJSON()) {
		t.Fatalf("two synth passes over identical settings produced different templates")
	}
}
