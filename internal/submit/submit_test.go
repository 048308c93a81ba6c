package submit

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func sampleBooks() []types.Book {
	return []types.Book{
		types.NewBook(types.BookMeta{ASIN: "B001", Title: "Dune", Author: "Frank Herbert"}, []types.Highlight{
			{Content: "Fear is the mind-killer.", Location: "1,234", Color: "Yellow"},
			{Content: "The spice must flow.", Note: "classic", Location: "2,000-2,004"},
		}),
		types.NewBook(types.BookMeta{ASIN: "B002", Title: "Emma"}, []types.Highlight{
			{Content: "Badly done, Emma!"},
		}),
	}
}

func apiConfig(endpoint string) config.SubmitConfig {
	cfg := config.DefaultConfig().Submit
	cfg.Type = "api"
	cfg.Endpoint = endpoint
	cfg.Token = "secret"
	cfg.Timeout = 2 * time.Second
	cfg.MaxRetries = 1
	return cfg
}

func TestAPISubmit(t *testing.T) {
	var got apiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"imported":2,"skipped":1}`))
	}))
	defer srv.Close()

	api := NewAPI(apiConfig(srv.URL+"/import"), testLogger)
	res, err := api.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)

	assert.Equal(t, types.SubmitResult{BooksProcessed: 2, HighlightsImported: 2, HighlightsSkipped: 1}, res)
	assert.Equal(t, "kindle", got.Source)
	require.Len(t, got.Books, 2)
	assert.Equal(t, "Dune", got.Books[0].Title)
	assert.Equal(t, "Frank Herbert", got.Books[0].Author)
	require.Len(t, got.Books[0].Highlights, 2)
	assert.Equal(t, "classic", got.Books[0].Highlights[1].Note)
	assert.Equal(t, "2,000-2,004", got.Books[0].Highlights[1].Location)
}

func TestAPISubmitRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"imported":3,"skipped":0}`))
	}))
	defer srv.Close()

	res, err := NewAPI(apiConfig(srv.URL), testLogger).Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, 3, res.HighlightsImported)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAPISubmitClientError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":"token expired"}`))
	}))
	defer srv.Close()

	_, err := NewAPI(apiConfig(srv.URL), testLogger).Submit(context.Background(), sampleBooks())
	var se *types.SubmitError
	require.True(t, errors.As(err, &se), "expected SubmitError, got %v", err)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Contains(t, se.Error(), "token expired")
}

func TestJSONSubmitSkipsRepeats(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "highlights.json")
	s, err := NewJSON(path, testLogger)
	require.NoError(t, err)
	defer s.Close()

	res, err := s.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, types.SubmitResult{BooksProcessed: 2, HighlightsImported: 3}, res)

	res, err = s.Submit(context.Background(), sampleBooks()[:1])
	require.NoError(t, err)
	assert.Equal(t, types.SubmitResult{BooksProcessed: 1, HighlightsSkipped: 2}, res)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var records []record
	require.NoError(t, json.Unmarshal(data, &records))
	require.Len(t, records, 3)
	assert.Equal(t, "B001", records[0].ASIN)
	assert.Equal(t, "Dune", records[0].BookTitle)
	assert.Equal(t, "Badly done, Emma!", records[2].Content)
}

func TestJSONLSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "highlights.jsonl")
	s, err := NewJSONL(path, testLogger)
	require.NoError(t, err)

	_, err = s.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var r record
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &r))
	assert.Equal(t, "The spice must flow.", r.Content)
	assert.Equal(t, "classic", r.Note)
}

func TestCSVSubmit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "highlights.csv")
	s, err := NewCSV(path, testLogger)
	require.NoError(t, err)

	res, err := s.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, 3, res.HighlightsImported)
	require.NoError(t, s.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)

	require.Len(t, rows, 4)
	assert.Equal(t, csvHeader, rows[0])
	assert.Equal(t, []string{"B001", "Dune", "Frank Herbert", "Fear is the mind-killer.", "", "1,234", "Yellow"}, rows[1])
}

type stubSubmitter struct {
	name   string
	result types.SubmitResult
	err    error
	calls  int
	closed bool
}

func (s *stubSubmitter) Name() string { return s.name }

func (s *stubSubmitter) Submit(context.Context, []types.Book) (types.SubmitResult, error) {
	s.calls++
	return s.result, s.err
}

func (s *stubSubmitter) Close() error {
	s.closed = true
	return nil
}

func TestMultiReportsPrimary(t *testing.T) {
	primary := &stubSubmitter{name: "api", result: types.SubmitResult{BooksProcessed: 2, HighlightsImported: 3}}
	secondary := &stubSubmitter{name: "csv", err: errors.New("disk full")}
	m := NewMulti([]Submitter{primary, secondary}, testLogger)

	res, err := m.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, primary.result, res)
	assert.Equal(t, 1, secondary.calls)

	require.NoError(t, m.Close())
	assert.True(t, primary.closed)
	assert.True(t, secondary.closed)
}

func TestMultiPrimaryFailure(t *testing.T) {
	primary := &stubSubmitter{name: "api", err: errors.New("down")}
	secondary := &stubSubmitter{name: "csv"}
	_, err := NewMulti([]Submitter{primary, secondary}, testLogger).Submit(context.Background(), nil)
	assert.EqualError(t, err, "down")
	assert.Equal(t, 1, secondary.calls)
}

func TestDryRunWritesNothing(t *testing.T) {
	inner := &stubSubmitter{name: "api"}
	d := NewDryRun(inner, testLogger)

	res, err := d.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, types.SubmitResult{BooksProcessed: 2, HighlightsSkipped: 3}, res)
	assert.Zero(t, inner.calls)
	assert.Equal(t, "dry_run(api)", d.Name())
}

func TestNewFromConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Submit.Type = "multi"
	cfg.Submit.Targets = []string{"json", "csv"}
	cfg.Submit.OutputPath = filepath.Join(dir, "highlights.json")

	s, err := New(cfg, testLogger)
	require.NoError(t, err)
	_, err = s.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	require.NoError(t, s.Close())

	assert.FileExists(t, filepath.Join(dir, "highlights.json"))
	assert.FileExists(t, filepath.Join(dir, "highlights.csv"))

	cfg.Submit.Type = "jsonl"
	cfg.Submit.DryRun = true
	s, err = New(cfg, testLogger)
	require.NoError(t, err)
	assert.IsType(t, &DryRun{}, s)
	require.NoError(t, s.Close())

	cfg.Submit.Type = "ftp"
	_, err = New(cfg, testLogger)
	assert.Error(t, err)
}

func TestPathFor(t *testing.T) {
	assert.Equal(t, "out/h.csv", pathFor("out/h.json", "csv"))
	assert.Equal(t, "out/h.jsonl", pathFor("out/h.json", "jsonl"))
	assert.Equal(t, "out/h.json", pathFor("out/h.json", "api"))
}

func TestHighlightModels(t *testing.T) {
	now := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	models := highlightModels(sampleBooks(), now)
	require.Len(t, models, 3)

	m, ok := models[0].(*mongo.UpdateOneModel)
	require.True(t, ok)
	require.NotNil(t, m.Upsert)
	assert.True(t, *m.Upsert)
	assert.Contains(t, m.Filter, bson.E{Key: "asin", Value: "B001"})
	assert.Contains(t, m.Filter, bson.E{Key: "location", Value: "1,234"})

	assert.Empty(t, highlightModels(nil, now))
}

func TestMongoSubmit(t *testing.T) {
	uri := os.Getenv("KINDLEGOAT_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("KINDLEGOAT_TEST_MONGO_URI not set")
	}
	cfg := config.DefaultConfig().Submit
	cfg.MongoURI = uri
	cfg.MongoColl = "highlights_test_" + time.Now().Format("150405.000")

	m, err := NewMongo(cfg, testLogger)
	require.NoError(t, err)
	defer func() {
		_ = m.collection.Drop(context.Background())
		_ = m.Close()
	}()

	res, err := m.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, 3, res.HighlightsImported)

	res, err = m.Submit(context.Background(), sampleBooks())
	require.NoError(t, err)
	assert.Equal(t, 0, res.HighlightsImported)
	assert.Equal(t, 3, res.HighlightsSkipped)
}
