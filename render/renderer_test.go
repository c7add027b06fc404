package render

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/page"

	"agreementpdf/auth"
	"agreementpdf/event"
)

func testRenderer(t *testing.T, secret string) *Renderer {
	t.Helper()
	signer := auth.NewSigner(secret, "agreement-pdf-service", time.Minute, nil)
	r := NewRenderer(signer, filepath.Join(t.TempDir(), "render"), nil)
	return r
}

func TestOutputPathCarriesUniqueSuffix(t *testing.T) {
	r := testRenderer(t, "secret")

	suffixes := []string{"aaa", "bbb"}
	r.newSuffix = func() string {
		s := suffixes[0]
		suffixes = suffixes[1:]
		return s
	}

	first := r.outputPath("FPTT123456789-1.pdf")
	second := r.outputPath("FPTT123456789-1.pdf")

	if first == second {
		t.Fatalf("concurrent renders of the same agreement must not share a path")
	}
	if filepath.Base(first) != "FPTT123456789-1-aaa.pdf" {
		t.Errorf("path = %q", first)
	}
	if !strings.HasSuffix(first, ".pdf") || !strings.HasSuffix(second, ".pdf") {
		t.Errorf("output must keep the pdf extension: %q %q", first, second)
	}
}

func TestRenderCreatesTempFolderBeforeFailing(t *testing.T) {
	// An empty signing secret fails the token mint, which happens after the
	// temp folder is ensured but before any browser is launched.
	r := testRenderer(t, "")

	_, err := r.Render(context.Background(), event.AgreementData{
		AgreementNumber: "FPTT123456789",
		AgreementURL:    "https://example.com/agreement",
	}, "FPTT123456789-1.pdf")
	if err == nil {
		t.Fatalf("expected token mint failure")
	}

	info, statErr := os.Stat(r.tmpFolder)
	if statErr != nil {
		t.Fatalf("temp folder not created: %v", statErr)
	}
	if runtime.GOOS != "windows" {
		if perm := info.Mode().Perm(); perm != 0o700 {
			t.Errorf("temp folder perm = %o, want 700", perm)
		}
	}
}

func TestSubmitScriptTargetsViewAgreement(t *testing.T) {
	for _, want := range []string{"'POST'", "'action'", "'view-agreement'", "form.submit()"} {
		if !strings.Contains(submitViewAgreementScript, want) {
			t.Errorf("submit script missing %s", want)
		}
	}
}

func mainFrameNavigated(loader cdp.LoaderID) *page.EventFrameNavigated {
	return &page.EventFrameNavigated{Frame: &cdp.Frame{ID: "main", LoaderID: loader}}
}

func TestNavigationIdleGateIgnoresStaleLoader(t *testing.T) {
	gate := &navigationIdleGate{}

	// The initial page's loader going quiet late must not open the gate:
	// the form submission has not committed yet.
	if gate.observe(&page.EventLifecycleEvent{Name: lifecycleNetworkIdle, LoaderID: "initial"}) {
		t.Fatalf("idle from a pre-submission loader must not open the gate")
	}

	if gate.observe(mainFrameNavigated("post")) {
		t.Fatalf("a commit alone must not open the gate")
	}

	// Another straggler from the old loader after the new commit.
	if gate.observe(&page.EventLifecycleEvent{Name: lifecycleNetworkIdle, LoaderID: "initial"}) {
		t.Fatalf("stale idle after commit must not open the gate")
	}
	if gate.observe(&page.EventLifecycleEvent{Name: "load", LoaderID: "post"}) {
		t.Fatalf("only network idle opens the gate")
	}

	if !gate.observe(&page.EventLifecycleEvent{Name: lifecycleNetworkIdle, LoaderID: "post"}) {
		t.Fatalf("idle from the committed loader must open the gate")
	}
}

func TestNavigationIdleGateIgnoresSubframes(t *testing.T) {
	gate := &navigationIdleGate{}

	sub := &page.EventFrameNavigated{Frame: &cdp.Frame{ID: "iframe", ParentID: "main", LoaderID: "iframe-loader"}}
	gate.observe(sub)

	if gate.observe(&page.EventLifecycleEvent{Name: lifecycleNetworkIdle, LoaderID: "iframe-loader"}) {
		t.Fatalf("a subframe navigation must not arm the gate")
	}

	gate.observe(mainFrameNavigated("post"))
	if !gate.observe(&page.EventLifecycleEvent{Name: lifecycleNetworkIdle, LoaderID: "post"}) {
		t.Fatalf("main-frame idle must still open the gate")
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	r := testRenderer(t, "secret")
	sess := r.newSession(context.Background())

	// Simulate a browser that went away on its own.
	sess.cancel()

	sess.Close()
	sess.Close()

	if !sess.closed {
		t.Errorf("session should report closed")
	}
}

func TestRemovePartialToleratesMissingFile(t *testing.T) {
	r := testRenderer(t, "secret")
	r.removePartial(filepath.Join(t.TempDir(), "never-written.pdf"))
}
