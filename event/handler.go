package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"agreementpdf/storage"
)

// ErrUnrecognizedType signals an event outside the agreement-status family.
// It is a permanent classification: redelivering the same message can never
// make the type recognizable.
var ErrUnrecognizedType = errors.New("event: unrecognized event type")

const (
	// acceptedTypeMarker must appear in the event type for the event to be
	// considered at all.
	acceptedTypeMarker = "agreement.status.updated"
	// statusAccepted is the only status that triggers a render.
	statusAccepted = "accepted"
)

// Outcome tags what processing an event amounted to. Only Stored produces a
// durable artifact; everything else resolves the message without one.
type Outcome int

const (
	OutcomeSkipped Outcome = iota
	OutcomeRenderFailed
	OutcomeStoreFailed
	OutcomeStored
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRenderFailed:
		return "render_failed"
	case OutcomeStoreFailed:
		return "store_failed"
	case OutcomeStored:
		return "stored"
	default:
		return "unknown"
	}
}

// Result reports the outcome of handling one event. LocalPath is empty
// exactly when no render completed.
type Result struct {
	Outcome   Outcome
	LocalPath string
	Upload    *storage.UploadResult
}

// Renderer produces a local PDF of the agreement page.
type Renderer interface {
	Render(ctx context.Context, agreement AgreementData, filename string) (string, error)
}

// Uploader persists a rendered PDF and owns the local file's deletion.
type Uploader interface {
	Upload(ctx context.Context, localPath, filename, agreementNumber, version string, endDate time.Time) (storage.UploadResult, error)
}

// Handler validates and gates inbound events and orchestrates render then
// upload. It holds no state across events.
type Handler struct {
	renderer     Renderer
	uploader     Uploader
	allowedHosts map[string]struct{}
	logger       *slog.Logger
}

// NewHandler creates a Handler. A nil logger defaults to slog.Default.
func NewHandler(renderer Renderer, uploader Uploader, allowedHosts []string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	hosts := make(map[string]struct{}, len(allowedHosts))
	for _, h := range allowedHosts {
		hosts[strings.ToLower(h)] = struct{}{}
	}
	return &Handler{
		renderer:     renderer,
		uploader:     uploader,
		allowedHosts: hosts,
		logger:       logger,
	}
}

// Handle processes one acceptance event. An event is acted upon iff its type
// carries the status-updated marker, an agreement URL is present, the status
// is accepted and the URL host is allow-listed; every failing gate is a
// deliberate no-op, not an error. Render and upload failures are absorbed
// here so a broken render target or bucket never drives redelivery storms.
// Two kinds of error do return: the permanent unrecognized-type
// classification, and a failure caused by the per-message deadline or a
// shutdown — an interrupted message must stay on the queue, not be
// acknowledged as a failed render.
func (h *Handler) Handle(ctx context.Context, evt AcceptanceEvent) (Result, error) {
	if !strings.Contains(evt.Type, acceptedTypeMarker) {
		return Result{}, fmt.Errorf("%w: %q", ErrUnrecognizedType, evt.Type)
	}

	data := evt.Data
	if data.AgreementURL == "" {
		return Result{Outcome: OutcomeSkipped}, nil
	}

	if data.Status != statusAccepted {
		h.logger.Info("agreement event skipped",
			"status", data.Status,
			"agreement", data.AgreementNumber,
		)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	if !h.hostAllowed(data.AgreementURL) {
		h.logger.Warn("agreement url host not allow-listed",
			"url", data.AgreementURL,
			"agreement", data.AgreementNumber,
		)
		return Result{Outcome: OutcomeSkipped}, nil
	}

	filename := fmt.Sprintf("%s-%s.pdf", data.AgreementNumber, data.VersionString())

	localPath, err := h.renderer.Render(ctx, data, filename)
	if err != nil {
		if interrupted(ctx, err) {
			return Result{}, fmt.Errorf("event: render interrupted: %w", err)
		}
		h.logger.Error("agreement render failed",
			"agreement", data.AgreementNumber,
			"version", data.VersionString(),
			"url", data.AgreementURL,
			"error", err.Error(),
		)
		return Result{Outcome: OutcomeRenderFailed}, nil
	}

	endDate, ok := data.ParsedEndDate()
	if !ok {
		h.logger.Warn("agreement end date missing or unparseable",
			"agreement", data.AgreementNumber,
			"endDate", data.AgreementEndDate,
		)
	}

	upload, err := h.uploader.Upload(ctx, localPath, filename, data.AgreementNumber, data.VersionString(), endDate)
	if err != nil {
		if interrupted(ctx, err) {
			return Result{}, fmt.Errorf("event: upload interrupted: %w", err)
		}
		h.logger.Error("agreement upload failed",
			"agreement", data.AgreementNumber,
			"version", data.VersionString(),
			"path", localPath,
			"error", err.Error(),
		)
		return Result{Outcome: OutcomeStoreFailed, LocalPath: localPath}, nil
	}

	return Result{Outcome: OutcomeStored, LocalPath: localPath, Upload: &upload}, nil
}

// interrupted reports whether a step failed because the message's own
// context ended, as opposed to the step failing on its own.
func interrupted(ctx context.Context, err error) bool {
	return ctx.Err() != nil && errors.Is(err, ctx.Err())
}

func (h *Handler) hostAllowed(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	_, ok := h.allowedHosts[strings.ToLower(u.Hostname())]
	return ok
}
