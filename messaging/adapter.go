package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"agreementpdf/event"
)

// ErrMalformedMessage classifies a body that can never parse. Redelivering
// the same bytes is pointless, so the consumer treats this as permanent.
var ErrMalformedMessage = errors.New("messaging: malformed message")

// ProcessingError wraps a handler failure with the message it belonged to so
// redelivery decisions can see both.
type ProcessingError struct {
	MessageID string
	Err       error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("messaging: process message %s: %v", e.MessageID, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// EventHandler is the business layer the adapter dispatches into.
type EventHandler interface {
	Handle(ctx context.Context, evt event.AcceptanceEvent) (event.Result, error)
}

// Notifier publishes the stored notification for downstream consumers.
type Notifier interface {
	PublishStored(ctx context.Context, n StoredNotification) error
}

// StoredNotification announces a persisted agreement PDF.
type StoredNotification struct {
	AgreementNumber string `json:"agreementNumber"`
	Version         string `json:"version"`
	CorrelationID   string `json:"correlationId,omitempty"`
	ClientRef       string `json:"clientRef,omitempty"`
	Bucket          string `json:"bucket"`
	Key             string `json:"key"`
	Location        string `json:"location"`
}

// Adapter translates opaque queue messages into typed handler calls and
// classifies the outcome for redelivery. No business knowledge lives here.
type Adapter struct {
	handler  EventHandler
	notifier Notifier
	logger   *slog.Logger
}

// NewAdapter creates an Adapter. notifier may be nil when no stored topic is
// configured; a nil logger defaults to slog.Default.
func NewAdapter(handler EventHandler, notifier Notifier, logger *slog.Logger) *Adapter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		handler:  handler,
		notifier: notifier,
		logger:   logger,
	}
}

// Process parses one raw queue message and dispatches it. A nil return means
// the message may be acknowledged. The stored notification is best-effort:
// persistence already succeeded, so a publish failure never fails the
// message.
func (a *Adapter) Process(ctx context.Context, messageID, body string) error {
	var evt event.AcceptanceEvent
	if err := json.Unmarshal([]byte(body), &evt); err != nil {
		return fmt.Errorf("%w: message %s: %v", ErrMalformedMessage, messageID, err)
	}

	result, err := a.handler.Handle(ctx, evt)
	if err != nil {
		return &ProcessingError{MessageID: messageID, Err: err}
	}

	a.logger.Info("message processed",
		"message_id", messageID,
		"outcome", result.Outcome.String(),
		"agreement", evt.Data.AgreementNumber,
	)

	if result.Outcome == event.OutcomeStored && a.notifier != nil && result.Upload != nil {
		n := StoredNotification{
			AgreementNumber: evt.Data.AgreementNumber,
			Version:         evt.Data.VersionString(),
			CorrelationID:   evt.Data.CorrelationID,
			ClientRef:       string(evt.Data.ClientRef),
			Bucket:          result.Upload.Bucket,
			Key:             result.Upload.Key,
			Location:        result.Upload.Location,
		}
		if err := a.notifier.PublishStored(ctx, n); err != nil {
			a.logger.Warn("stored notification publish failed",
				"message_id", messageID,
				"agreement", n.AgreementNumber,
				"error", err.Error(),
			)
		}
	}

	return nil
}
