package awsconn

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Clients bundles the AWS service clients this service talks to.
type Clients struct {
	SQS *sqs.Client
	S3  *s3.Client
	SNS *sns.Client
}

// New loads the shared AWS configuration and constructs the service clients.
// endpointURL, when set, points every client at an alternative endpoint
// (localstack in tests).
func New(ctx context.Context, region, endpointURL string) (Clients, error) {
	if region == "" {
		return Clients{}, fmt.Errorf("awsconn: empty region")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return Clients{}, fmt.Errorf("awsconn: load config: %w", err)
	}

	var endpoint *string
	if endpointURL != "" {
		endpoint = aws.String(endpointURL)
	}

	return Clients{
		SQS: sqs.NewFromConfig(cfg, func(o *sqs.Options) {
			o.BaseEndpoint = endpoint
		}),
		S3: s3.NewFromConfig(cfg, func(o *s3.Options) {
			o.BaseEndpoint = endpoint
			if endpoint != nil {
				o.UsePathStyle = true
			}
		}),
		SNS: sns.NewFromConfig(cfg, func(o *sns.Options) {
			o.BaseEndpoint = endpoint
		}),
	}, nil
}
