package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/cenkalti/backoff/v4"
)

const publishMaxElapsed = 30 * time.Second

// TopicAPI is the slice of the SNS API the publisher needs.
type TopicAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Publisher sends stored notifications to an SNS topic with exponential
// backoff. It sits beside the consume path, never inside the handler core.
type Publisher struct {
	client     TopicAPI
	topicARN   string
	logger     *slog.Logger
	newBackOff func() backoff.BackOff
}

// NewPublisher creates a Publisher for the given topic. A nil logger defaults
// to slog.Default.
func NewPublisher(client TopicAPI, topicARN string, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client:   client,
		topicARN: topicARN,
		logger:   logger,
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.MaxElapsedTime = publishMaxElapsed
			return bo
		},
	}
}

// PublishStored publishes the notification, retrying transient failures until
// the backoff budget or the context runs out.
func (p *Publisher) PublishStored(ctx context.Context, n StoredNotification) error {
	if p.topicARN == "" {
		return fmt.Errorf("messaging: topic arn is not configured")
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("messaging: marshal stored notification: %w", err)
	}

	attempt := 0
	operation := func() error {
		attempt++
		_, err := p.client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(p.topicARN),
			Message:  aws.String(string(body)),
		})
		if err != nil {
			p.logger.Warn("stored notification publish attempt failed",
				"topic", p.topicARN,
				"attempt", attempt,
				"error", err.Error(),
			)
		}
		return err
	}

	if err := backoff.Retry(operation, backoff.WithContext(p.newBackOff(), ctx)); err != nil {
		return fmt.Errorf("messaging: publish to %s: %w", p.topicARN, err)
	}
	return nil
}
