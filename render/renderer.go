package render

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"

	"agreementpdf/auth"
	"agreementpdf/event"
)

const (
	headerEncryptedAuth = "x-encrypted-auth"

	// A4 portrait, inches. Margins are the 20px print margin at 96dpi.
	paperWidthInches  = 8.27
	paperHeightInches = 11.69
	marginInches      = 20.0 / 96.0

	viewportWidth  = 1920
	viewportHeight = 1080

	lifecycleNetworkIdle = "networkIdle"
)

// submitViewAgreementScript builds and submits a same-origin POST form with
// the hidden action field the render target requires to transition into its
// printable view. The page does not expose this as a plain link.
const submitViewAgreementScript = `(() => {
	const form = document.createElement('form');
	form.method = 'POST';
	form.action = window.location.href;
	const input = document.createElement('input');
	input.type = 'hidden';
	input.name = 'action';
	input.value = 'view-agreement';
	form.appendChild(input);
	document.body.appendChild(form);
	form.submit();
})()`

// Renderer drives an isolated headless browser per render: authenticate,
// navigate, resubmit into the printable view, export to PDF on local disk.
// No browser is pooled across renders; isolation beats throughput here.
type Renderer struct {
	signer    *auth.Signer
	tmpFolder string
	logger    *slog.Logger
	newSuffix func() string
	allocOpts []chromedp.ExecAllocatorOption
}

// NewRenderer creates a Renderer writing into tmpFolder. A nil logger
// defaults to slog.Default.
func NewRenderer(signer *auth.Signer, tmpFolder string, logger *slog.Logger) *Renderer {
	if logger == nil {
		logger = slog.Default()
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.WindowSize(viewportWidth, viewportHeight),
	)
	return &Renderer{
		signer:    signer,
		tmpFolder: tmpFolder,
		logger:    logger,
		newSuffix: uuid.NewString,
		allocOpts: opts,
	}
}

// Render exports the agreement page as a PDF and returns the local path.
// Ownership of the file transfers to the caller on return. Any step failure
// removes partial output best-effort and surfaces the error.
func (r *Renderer) Render(ctx context.Context, agreement event.AgreementData, filename string) (string, error) {
	if err := os.MkdirAll(r.tmpFolder, 0o700); err != nil {
		return "", fmt.Errorf("render: create temp folder %s: %w", r.tmpFolder, err)
	}

	outputPath := r.outputPath(filename)

	token, err := r.signer.Sign()
	if err != nil {
		return "", fmt.Errorf("render: mint auth token: %w", err)
	}

	sess := r.newSession(ctx)
	defer sess.Close()

	var pdf []byte
	err = chromedp.Run(sess.ctx,
		network.Enable(),
		page.SetLifecycleEventsEnabled(true),
		// The auth header is installed before the first navigation so every
		// request in the session is authenticated, including the initial GET.
		network.SetExtraHTTPHeaders(network.Headers{headerEncryptedAuth: token}),
		navigateWaitDOMContent(agreement.AgreementURL),
		submitFormWaitNetworkIdle(submitViewAgreementScript),
		printToPDF(&pdf),
	)
	if err != nil {
		r.logger.Error("agreement render failed",
			"agreement", agreement.AgreementNumber,
			"version", agreement.VersionString(),
			"url", agreement.AgreementURL,
			"correlation_id", agreement.CorrelationID,
			"error", err.Error(),
		)
		r.removePartial(outputPath)
		return "", fmt.Errorf("render: %s: %w", agreement.AgreementNumber, err)
	}

	if err := os.WriteFile(outputPath, pdf, 0o600); err != nil {
		r.removePartial(outputPath)
		return "", fmt.Errorf("render: write %s: %w", outputPath, err)
	}

	if _, err := os.Stat(outputPath); err != nil {
		return "", fmt.Errorf("render: output missing after export: %w", err)
	}

	r.logger.Info("agreement rendered",
		"agreement", agreement.AgreementNumber,
		"version", agreement.VersionString(),
		"path", outputPath,
	)
	return outputPath, nil
}

// outputPath appends a per-invocation unique suffix so concurrent renders of
// the same agreement and version never collide on disk. The stable filename
// is reserved for the storage key.
func (r *Renderer) outputPath(filename string) string {
	base := strings.TrimSuffix(filename, ".pdf")
	return filepath.Join(r.tmpFolder, fmt.Sprintf("%s-%s.pdf", base, r.newSuffix()))
}

func (r *Renderer) removePartial(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		r.logger.Warn("partial render cleanup failed", "path", path, "error", err.Error())
	}
}

// session is a handle over one browser instance. It carries its own closed
// state so a close after browser self-disconnect never errors, and two Close
// calls are safe.
type session struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	logger      *slog.Logger
	closed      bool
}

func (r *Renderer) newSession(parent context.Context) *session {
	allocCtx, allocCancel := chromedp.NewExecAllocator(parent, r.allocOpts...)
	browserCtx, cancel := chromedp.NewContext(allocCtx)
	return &session{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		logger:      r.logger,
	}
}

// Close tears the browser down. Close-time failures are logged, never raised.
func (s *session) Close() {
	if s.closed {
		return
	}
	s.closed = true

	// A done context means the browser already went away on its own; a
	// graceful Cancel would only report the disconnect again.
	if s.ctx.Err() == nil {
		if err := chromedp.Cancel(s.ctx); err != nil {
			s.logger.Warn("browser close failed", "error", err.Error())
		}
	}
	s.cancel()
	s.allocCancel()
}

// navigateWaitDOMContent starts navigation and returns once DOM content is
// loaded. Waiting for full network idle here could hang on slow subresources
// before the printable-view submission even runs.
func navigateWaitDOMContent(urlstr string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		ready := make(chan struct{}, 1)
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			if _, ok := ev.(*page.EventDomContentEventFired); ok {
				select {
				case ready <- struct{}{}:
				default:
				}
			}
		})

		_, _, errorText, err := page.Navigate(urlstr).Do(ctx)
		if err != nil {
			return err
		}
		if errorText != "" {
			return fmt.Errorf("navigate %s: %s", urlstr, errorText)
		}

		select {
		case <-ready:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

// navigationIdleGate opens once a navigation that commits after the gate is
// armed reaches network idle. Lifecycle events still trickling in from the
// previous navigation's loader (a slow subresource going quiet late) carry
// the old loader id and must not open it.
type navigationIdleGate struct {
	loaderID cdp.LoaderID
}

// observe feeds one DevTools event and reports whether the new navigation
// has reached network idle. Subframe navigations are ignored.
func (g *navigationIdleGate) observe(ev interface{}) bool {
	switch e := ev.(type) {
	case *page.EventFrameNavigated:
		if e.Frame.ParentID == "" {
			g.loaderID = e.Frame.LoaderID
		}
	case *page.EventLifecycleEvent:
		return e.Name == lifecycleNetworkIdle && g.loaderID != "" && e.LoaderID == g.loaderID
	}
	return false
}

// submitFormWaitNetworkIdle runs the form-submission script and blocks until
// the navigation it triggers reaches network idle. The listener is armed
// before the script runs so the main-frame commit cannot be missed.
// Requires page.SetLifecycleEventsEnabled.
func submitFormWaitNetworkIdle(script string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		idle := make(chan struct{}, 1)
		var mu sync.Mutex
		gate := &navigationIdleGate{}
		lctx, cancel := context.WithCancel(ctx)
		defer cancel()
		chromedp.ListenTarget(lctx, func(ev interface{}) {
			mu.Lock()
			open := gate.observe(ev)
			mu.Unlock()
			if open {
				select {
				case idle <- struct{}{}:
				default:
				}
			}
		})

		if err := chromedp.Evaluate(script, nil).Do(ctx); err != nil {
			return err
		}

		select {
		case <-idle:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
}

func printToPDF(out *[]byte) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		buf, _, err := page.PrintToPDF().
			WithPrintBackground(true).
			WithPaperWidth(paperWidthInches).
			WithPaperHeight(paperHeightInches).
			WithMarginTop(marginInches).
			WithMarginBottom(marginInches).
			WithMarginLeft(marginInches).
			WithMarginRight(marginInches).
			Do(ctx)
		if err != nil {
			return err
		}
		*out = buf
		return nil
	})
}
