package storage

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/IshaanNene/pricetracker/internal/types"
)

// --- MongoDB ---

// MongoMirror copies history entries into a MongoDB collection.
type MongoMirror struct {
	client     *mongo.Client
	collection *mongo.Collection
	mu         sync.Mutex
	count      int
	logger     *slog.Logger
}

// NewMongoMirror connects to uri and pings the server.
func NewMongoMirror(ctx context.Context, uri, database, collection string, logger *slog.Logger) (*MongoMirror, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("ping: %w", err)}
	}

	return &MongoMirror{
		client:     client,
		collection: client.Database(database).Collection(collection),
		logger:     logger.With("component", "mongo_mirror"),
	}, nil
}

func (m *MongoMirror) Name() string { return "mongodb" }

func (m *MongoMirror) Mirror(ctx context.Context, productID string, e types.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if _, err := m.collection.InsertOne(ctx, entryDocument(productID, e, time.Now())); err != nil {
		return &types.StorageError{Backend: "mongodb", Err: fmt.Errorf("insert: %w", err)}
	}
	m.count++
	m.logger.Debug("entry mirrored", "product_id", productID, "total", m.count)
	return nil
}

func (m *MongoMirror) Close() error {
	m.logger.Info("mongodb mirror closing", "total_entries", m.count)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return m.client.Disconnect(ctx)
}

func entryDocument(productID string, e types.HistoryEntry, at time.Time) bson.M {
	doc := bson.M{
		"productId":  productID,
		"date":       e.Date,
		"status":     e.Status,
		"price":      nil,
		"currency":   nil,
		"recordedAt": at.UTC(),
	}
	if e.Price != nil {
		doc["price"] = *e.Price
	}
	if e.Currency != nil {
		doc["currency"] = *e.Currency
	}
	for k, v := range map[string]string{"rawData": e.RawData, "error": e.Error, "label": e.Label, "tier": string(e.Tier)} {
		if v != "" {
			doc[k] = v
		}
	}
	return doc
}

// --- PostgreSQL ---

// PostgresMirror copies history entries into a PostgreSQL table.
type PostgresMirror struct {
	pool   *pgxpool.Pool
	table  string
	logger *slog.Logger
}

// NewPostgresMirror connects with dsn and creates the table if missing.
func NewPostgresMirror(ctx context.Context, dsn, table string, logger *slog.Logger) (*PostgresMirror, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("connect: %w", err)}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &types.StorageError{Backend: "postgres", Err: fmt.Errorf("ping: %w", err)}
	}

	m := &PostgresMirror{
		pool:   pool,
		table:  pgx.Identifier{table}.Sanitize(),
		logger: logger.With("component", "postgres_mirror"),
	}
	if err := m.ensureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return m, nil
}

func (m *PostgresMirror) ensureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			product_id  TEXT        NOT NULL,
			day         DATE        NOT NULL,
			price       NUMERIC(12, 2),
			currency    TEXT,
			status      TEXT        NOT NULL,
			raw_data    TEXT,
			error       TEXT,
			label       TEXT,
			tier        TEXT,
			recorded_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`, m.table)
	if _, err := m.pool.Exec(ctx, ddl); err != nil {
		return &types.StorageError{Backend: "postgres", Err: fmt.Errorf("create table: %w", err)}
	}
	return nil
}

func (m *PostgresMirror) Name() string { return "postgres" }

func (m *PostgresMirror) Mirror(ctx context.Context, productID string, e types.HistoryEntry) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (product_id, day, price, currency, status, raw_data, error, label, tier)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`, m.table)

	day, err := time.Parse(types.DateLayout, e.Date)
	if err != nil {
		return &types.StorageError{Backend: "postgres", Err: fmt.Errorf("entry date %q: %w", e.Date, err)}
	}

	_, err = m.pool.Exec(ctx, query,
		productID,
		day,
		e.Price,
		e.Currency,
		e.Status,
		nullable(e.RawData),
		nullable(e.Error),
		nullable(e.Label),
		nullable(string(e.Tier)),
	)
	if err != nil {
		return &types.StorageError{Backend: "postgres", Err: fmt.Errorf("insert: %w", err)}
	}
	return nil
}

func (m *PostgresMirror) Close() error {
	m.pool.Close()
	return nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// --- Fan-out ---

// MultiStore writes every entry to the file store, then to each mirror.
// Only file store failures are returned; mirror failures are logged.
type MultiStore struct {
	file    *FileStore
	mirrors []Mirror
	logger  *slog.Logger
}

// NewMultiStore creates a store that fans out to mirrors.
func NewMultiStore(file *FileStore, mirrors []Mirror, logger *slog.Logger) *MultiStore {
	return &MultiStore{
		file:    file,
		mirrors: mirrors,
		logger:  logger.With("component", "multi_store"),
	}
}

// Record appends e to productID's history.
func (s *MultiStore) Record(ctx context.Context, productID string, e types.HistoryEntry) error {
	if err := s.file.Append(productID, e); err != nil {
		return err
	}
	for _, m := range s.mirrors {
		if err := m.Mirror(ctx, productID, e); err != nil {
			s.logger.Error("mirror write failed", "backend", m.Name(), "product_id", productID, "error", err)
		}
	}
	return nil
}

// Load returns the stored history of productID.
func (s *MultiStore) Load(productID string) (*types.History, error) {
	return s.file.Load(productID)
}

func (s *MultiStore) Close() error {
	var firstErr error
	for _, m := range s.mirrors {
		if err := m.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
