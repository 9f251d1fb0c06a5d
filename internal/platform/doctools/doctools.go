package doctools

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/stagium/backend/internal/platform/ctxutil"
	"github.com/stagium/backend/internal/platform/logger"
)

// Tools wraps the poppler binaries used to read uploaded documents.
//
// REQUIRED BINARIES in the runtime image:
// - pdftotext (poppler-utils) for PDF -> text
//
// Calls are synchronous; the only caller is the status-change request path, which
// runs extraction before it opens its database transaction.
type Tools interface {
	AssertReady(ctx context.Context) error
	ExtractText(ctx context.Context, pdfBytes []byte) (string, error)
	WriteTempFile(data []byte, suffix string) (string, func(), error)
}

type tools struct {
	log *logger.Logger

	pdftotextPath  string
	workRoot       string
	defaultTimeout time.Duration
}

func New(log *logger.Logger) Tools {
	return &tools{
		log:            log.With("component", "DocTools"),
		pdftotextPath:  "pdftotext",
		workRoot:       filepath.Join(os.TempDir(), "stagium-docs"),
		defaultTimeout: 30 * time.Second,
	}
}

func (t *tools) AssertReady(ctx context.Context) error {
	if _, err := exec.LookPath(t.pdftotextPath); err != nil {
		return fmt.Errorf("missing required binary %q in PATH: %w", t.pdftotextPath, err)
	}
	if err := os.MkdirAll(t.workRoot, 0o755); err != nil {
		return fmt.Errorf("create work root: %w", err)
	}
	return nil
}

// ExtractText runs pdftotext over the given bytes and returns the raw text of
// every page. Layout mode is deliberately off: reference tokens split across
// fragments reassemble better from the plain stream.
func (t *tools) ExtractText(ctx context.Context, pdfBytes []byte) (string, error) {
	ctx = ctxutil.Default(ctx)
	ctx, cancel := context.WithTimeout(ctx, t.defaultTimeout)
	defer cancel()

	in, cleanup, err := t.WriteTempFile(pdfBytes, ".pdf")
	if err != nil {
		return "", err
	}
	defer cleanup()

	var out bytes.Buffer
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, t.pdftotextPath, "-q", in, "-")
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		t.log.Warn("pdftotext failed", "error", err, "stderr", stderr.String())
		return "", fmt.Errorf("pdftotext: %w", err)
	}
	return out.String(), nil
}

func (t *tools) WriteTempFile(data []byte, suffix string) (string, func(), error) {
	if err := os.MkdirAll(t.workRoot, 0o755); err != nil {
		return "", nil, fmt.Errorf("create work root: %w", err)
	}
	f, err := os.CreateTemp(t.workRoot, "doc-*"+suffix)
	if err != nil {
		return "", nil, fmt.Errorf("create temp file: %w", err)
	}
	name := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(name)
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return name, func() { _ = os.Remove(name) }, nil
}
