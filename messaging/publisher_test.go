package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/cenkalti/backoff/v4"
)

type fakeTopic struct {
	failures int
	calls    int
	message  string
	topicARN string
}

func (f *fakeTopic) Publish(_ context.Context, params *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	f.calls++
	f.message = aws.ToString(params.Message)
	f.topicARN = aws.ToString(params.TopicArn)
	if f.calls <= f.failures {
		return nil, errors.New("sns unavailable")
	}
	return &sns.PublishOutput{MessageId: aws.String("sns-1")}, nil
}

func fastPublisher(client TopicAPI, topicARN string) *Publisher {
	p := NewPublisher(client, topicARN, nil)
	p.newBackOff = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5)
	}
	return p
}

func storedFixture() StoredNotification {
	return StoredNotification{
		AgreementNumber: "FPTT123456789",
		Version:         "1",
		Bucket:          "agreements",
		Key:             "standard/FPTT123456789/1/FPTT123456789-1.pdf",
		Location:        "s3://agreements/standard/FPTT123456789/1/FPTT123456789-1.pdf",
	}
}

func TestPublishStored(t *testing.T) {
	topic := &fakeTopic{}
	p := fastPublisher(topic, "arn:aws:sns:eu-west-2:000000000000:stored")

	if err := p.PublishStored(context.Background(), storedFixture()); err != nil {
		t.Fatalf("PublishStored: %v", err)
	}

	if topic.topicARN != "arn:aws:sns:eu-west-2:000000000000:stored" {
		t.Errorf("topic arn = %q", topic.topicARN)
	}

	var got StoredNotification
	if err := json.Unmarshal([]byte(topic.message), &got); err != nil {
		t.Fatalf("unmarshal published message: %v", err)
	}
	if got != storedFixture() {
		t.Errorf("published = %+v", got)
	}
}

func TestPublishStoredRetriesTransientFailures(t *testing.T) {
	topic := &fakeTopic{failures: 2}
	p := fastPublisher(topic, "arn:topic")

	if err := p.PublishStored(context.Background(), storedFixture()); err != nil {
		t.Fatalf("PublishStored: %v", err)
	}
	if topic.calls != 3 {
		t.Errorf("calls = %d, want 3", topic.calls)
	}
}

func TestPublishStoredGivesUpEventually(t *testing.T) {
	topic := &fakeTopic{failures: 100}
	p := fastPublisher(topic, "arn:topic")

	if err := p.PublishStored(context.Background(), storedFixture()); err == nil {
		t.Fatalf("expected exhausted retries to surface an error")
	}
}

func TestPublishStoredEmptyTopic(t *testing.T) {
	topic := &fakeTopic{}
	p := fastPublisher(topic, "")

	if err := p.PublishStored(context.Background(), storedFixture()); err == nil {
		t.Fatalf("expected error for missing topic arn")
	}
	if topic.calls != 0 {
		t.Errorf("no publish expected without a topic")
	}
}
