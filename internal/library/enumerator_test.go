package library

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/extract"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

type fakeSurface struct {
	counts    []int
	scrolls   int
	toTop     int
	spinner   int // spinner reads that report visible before it clears
	countRead int
}

func (f *fakeSurface) ScrollLibrary(context.Context) error {
	f.scrolls++
	return nil
}

func (f *fakeSurface) ScrollLibraryTop(context.Context) error {
	f.toTop++
	return nil
}

func (f *fakeSurface) BookCount(context.Context) (int, error) {
	i := f.countRead
	f.countRead++
	if i >= len(f.counts) {
		i = len(f.counts) - 1
	}
	return f.counts[i], nil
}

func (f *fakeSurface) SpinnerVisible(context.Context) (bool, error) {
	if f.spinner > 0 {
		f.spinner--
		return true, nil
	}
	return false, nil
}

func (f *fakeSurface) HTML(context.Context) (string, error) {
	n := f.counts[len(f.counts)-1]
	if f.countRead < len(f.counts) {
		n = f.counts[f.countRead-1]
	}
	var b strings.Builder
	b.WriteString(`<div id="kp-notebook-library">`)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, `<div id="B%04d" class="kp-notebook-library-each-book"><h2 class="kp-notebook-searchable">Book %d</h2><p class="kp-notebook-searchable">By: Author %d</p></div>`, i, i, i)
	}
	b.WriteString(`</div>`)
	return b.String(), nil
}

func testSyncConfig() config.SyncConfig {
	cfg := config.DefaultConfig().Sync
	cfg.ScrollWait = 0
	cfg.PollInterval = time.Millisecond
	cfg.SpinnerTimeout = 20 * time.Millisecond
	cfg.MaxScrollIters = 10
	return cfg
}

func TestListBooksStopsOnStableCount(t *testing.T) {
	surface := &fakeSurface{counts: []int{20, 40, 45, 45, 45, 45, 45}, spinner: 2}
	e := NewEnumerator(surface, extract.NewExtractor(testLogger), testSyncConfig(), testLogger)

	books, err := e.ListBooks(context.Background())
	require.NoError(t, err)

	// 20, 40, 45 then two repeats of 45
	assert.Equal(t, 5, surface.scrolls)
	assert.Equal(t, 1, surface.toTop)
	require.Len(t, books, 45)
	assert.Equal(t, "B0000", books[0].ASIN)
	assert.Equal(t, "Author 0", books[0].Author)
}

func TestListBooksSingleStableIteration(t *testing.T) {
	cfg := testSyncConfig()
	cfg.StableIterations = 1
	surface := &fakeSurface{counts: []int{3, 3, 3}}
	e := NewEnumerator(surface, extract.NewExtractor(testLogger), cfg, testLogger)

	_, err := e.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, surface.scrolls)
}

func TestListBooksZeroCountNeverStable(t *testing.T) {
	surface := &fakeSurface{counts: []int{0}}
	e := NewEnumerator(surface, extract.NewExtractor(testLogger), testSyncConfig(), testLogger)

	books, err := e.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Empty(t, books)
	assert.Equal(t, 10, surface.scrolls)
}

func TestListBooksBoundedWhenCountKeepsGrowing(t *testing.T) {
	counts := make([]int, 100)
	for i := range counts {
		counts[i] = i + 1
	}
	surface := &fakeSurface{counts: counts}
	e := NewEnumerator(surface, extract.NewExtractor(testLogger), testSyncConfig(), testLogger)

	books, err := e.ListBooks(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 10, surface.scrolls)
	assert.Len(t, books, 10)
}

func TestListBooksCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEnumerator(&fakeSurface{counts: []int{1}}, extract.NewExtractor(testLogger), testSyncConfig(), testLogger)

	_, err := e.ListBooks(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
