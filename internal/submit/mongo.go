package submit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/KindleGoat/internal/config"
	"github.com/IshaanNene/KindleGoat/internal/types"
)

// Mongo upserts each highlight into a collection keyed by ASIN, content and
// location. Highlights already stored are counted as skipped.
type Mongo struct {
	client     *mongo.Client
	collection *mongo.Collection
	logger     *slog.Logger
}

// NewMongo connects to MongoDB and verifies the connection.
func NewMongo(cfg config.SubmitConfig, logger *slog.Logger) (*Mongo, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("mongodb connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb ping: %w", err)
	}

	return &Mongo{
		client:     client,
		collection: client.Database(cfg.MongoDB).Collection(cfg.MongoColl),
		logger:     logger.With("component", "mongo_submitter"),
	}, nil
}

func (m *Mongo) Name() string { return "mongodb" }

func (m *Mongo) Submit(ctx context.Context, books []types.Book) (types.SubmitResult, error) {
	res := types.SubmitResult{BooksProcessed: len(books)}
	models := highlightModels(books, time.Now().UTC())
	if len(models) == 0 {
		return res, nil
	}

	out, err := m.collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return types.SubmitResult{}, &types.SubmitError{Backend: m.Name(), Err: err}
	}

	res.HighlightsImported = int(out.UpsertedCount)
	res.HighlightsSkipped = int(out.MatchedCount)
	m.logger.Info("batch upserted",
		"books", len(books),
		"imported", res.HighlightsImported,
		"skipped", res.HighlightsSkipped,
	)
	return res, nil
}

func (m *Mongo) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

// highlightModels builds one upsert per highlight. Existing documents are
// left untouched apart from last_seen.
func highlightModels(books []types.Book, now time.Time) []mongo.WriteModel {
	var models []mongo.WriteModel
	for _, b := range books {
		for _, h := range b.Highlights {
			filter := bson.D{
				{Key: "asin", Value: b.ASIN},
				{Key: "content", Value: h.Content},
				{Key: "location", Value: h.Location},
			}
			update := bson.D{
				{Key: "$setOnInsert", Value: bson.D{
					{Key: "book_title", Value: h.BookTitle},
					{Key: "book_author", Value: h.BookAuthor},
					{Key: "note", Value: h.Note},
					{Key: "color", Value: h.Color},
					{Key: "imported_at", Value: now},
				}},
				{Key: "$set", Value: bson.D{{Key: "last_seen", Value: now}}},
			}
			models = append(models, mongo.NewUpdateOneModel().
				SetFilter(filter).
				SetUpdate(update).
				SetUpsert(true))
		}
	}
	return models
}
