package messaging

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"golang.org/x/sync/errgroup"

	"agreementpdf/config"
	"agreementpdf/event"
)

// receiveBackoff paces retries after a failed long poll.
const receiveBackoff = time.Second

// QueueAPI is the slice of the SQS API the consumer needs.
type QueueAPI interface {
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Processor handles one raw message body.
type Processor interface {
	Process(ctx context.Context, messageID, body string) error
}

// Consumer long-polls the queue and fans received messages out to bounded
// concurrent workers. Each message is independent; the only cross-message
// throttles are the batch size and the browser-launch capacity it implies.
type Consumer struct {
	client    QueueAPI
	processor Processor
	queue     config.Queue
	logger    *slog.Logger
}

// NewConsumer creates a Consumer. A nil logger defaults to slog.Default.
func NewConsumer(client QueueAPI, processor Processor, queue config.Queue, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		client:    client,
		processor: processor,
		queue:     queue,
		logger:    logger,
	}
}

// Run polls until the context is cancelled. Receive failures are logged and
// retried after a short pause; they never terminate the loop on their own.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		out, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(c.queue.URL),
			MaxNumberOfMessages: c.queue.BatchSize,
			WaitTimeSeconds:     c.queue.WaitSeconds,
			VisibilityTimeout:   c.queue.VisibilitySeconds,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Error("queue receive failed", "queue", c.queue.URL, "error", err.Error())
			select {
			case <-time.After(receiveBackoff):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}

		if len(out.Messages) == 0 {
			continue
		}

		var g errgroup.Group
		g.SetLimit(int(c.queue.BatchSize))
		for _, msg := range out.Messages {
			m := msg
			g.Go(func() error {
				c.handleMessage(ctx, m)
				return nil
			})
		}
		_ = g.Wait()
	}
}

// handleMessage runs one message under the per-message deadline and settles
// its fate: delete on success, immediate redrive on permanent classification,
// visibility-timeout retry on anything else.
func (c *Consumer) handleMessage(ctx context.Context, msg types.Message) {
	mctx, cancel := context.WithTimeout(ctx, c.queue.HandlerTimeout)
	defer cancel()

	messageID := aws.ToString(msg.MessageId)
	err := c.processor.Process(mctx, messageID, aws.ToString(msg.Body))

	switch {
	case err == nil:
		c.ack(ctx, msg)
	case isPermanent(err):
		c.logger.Error("message permanently rejected",
			"message_id", messageID,
			"error", err.Error(),
		)
		// Zero visibility so the queue's redrive policy dead-letters the
		// message without burning a full timeout per attempt.
		c.expose(ctx, msg)
	default:
		c.logger.Error("message processing failed",
			"message_id", messageID,
			"error", err.Error(),
		)
	}
}

func (c *Consumer) ack(ctx context.Context, msg types.Message) {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queue.URL),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		c.logger.Warn("message delete failed",
			"message_id", aws.ToString(msg.MessageId),
			"error", err.Error(),
		)
	}
}

func (c *Consumer) expose(ctx context.Context, msg types.Message) {
	_, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queue.URL),
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: 0,
	})
	if err != nil {
		c.logger.Warn("message visibility reset failed",
			"message_id", aws.ToString(msg.MessageId),
			"error", err.Error(),
		)
	}
}

func isPermanent(err error) bool {
	return errors.Is(err, ErrMalformedMessage) || errors.Is(err, event.ErrUnrecognizedType)
}
