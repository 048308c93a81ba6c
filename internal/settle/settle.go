// Package settle waits for asynchronous page updates that announce no
// completion event of their own.
package settle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/KindleGoat/internal/extract"
)

// Signature is a cheap fingerprint of the displayed highlight list.
// Empty is set when the page shows its explicit no-highlights marker.
type Signature struct {
	ASIN   string
	Count  int
	Prefix string
	Empty  bool
}

// SignatureOf computes the signature of a rendered notebook document,
// keeping the first n runes of the first highlight.
func SignatureOf(doc *goquery.Document, n int) Signature {
	hl := doc.Find(extract.SelHighlight)
	prefix := []rune(extract.CleanText(hl.First().Text()))
	if len(prefix) > n {
		prefix = prefix[:n]
	}
	return Signature{
		ASIN:   strings.TrimSpace(doc.Find(extract.SelAnnotationsID).AttrOr("value", "")),
		Count:  hl.Length(),
		Prefix: string(prefix),
		Empty:  extract.HasNoHighlightsMarker(doc),
	}
}

// Probe reads the signature of a live page.
type Probe interface {
	Signature(ctx context.Context, prefixLen int) (Signature, error)
}

// Detector polls a Probe until the highlight list changes.
type Detector struct {
	probe     Probe
	interval  time.Duration
	prefixLen int
	logger    *slog.Logger
}

// NewDetector creates a settling detector polling every interval.
func NewDetector(probe Probe, interval time.Duration, prefixLen int, logger *slog.Logger) *Detector {
	return &Detector{
		probe:     probe,
		interval:  interval,
		prefixLen: prefixLen,
		logger:    logger.With("component", "settle"),
	}
}

// Current returns the signature of what is displayed now.
func (d *Detector) Current(ctx context.Context) (Signature, error) {
	return d.probe.Signature(ctx, d.prefixLen)
}

// WaitForChange blocks until the signature differs from prev or timeout
// elapses. A newly shown no-highlights marker counts as a change, so an
// empty book settles without waiting out the timeout. It reports false on
// timeout; the only error is the context's.
func (d *Detector) WaitForChange(ctx context.Context, prev Signature, timeout time.Duration) (bool, error) {
	return Until(ctx, d.interval, timeout, func(ctx context.Context) bool {
		sig, err := d.probe.Signature(ctx, d.prefixLen)
		if err != nil {
			d.logger.Debug("signature probe failed", "error", err)
			return false
		}
		return sig != prev
	})
}

// Until evaluates cond immediately and then every interval until it holds
// or timeout elapses. It reports whether cond held; the only error is the
// context's.
func Until(ctx context.Context, interval, timeout time.Duration, cond func(context.Context) bool) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if cond(ctx) {
		return true, nil
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-deadline.C:
			return false, nil
		case <-ticker.C:
			if cond(ctx) {
				return true, nil
			}
		}
	}
}

// Sleep pauses for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
