package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"advisor-dashboard/internal/models"
)

const (
	DatasetsCollection  = "datasets"
	SnapshotsCollection = "dataset_snapshots"

	// DefaultChunkRows keeps a chunk of transaction rows well under the
	// 16 MB document limit.
	DefaultChunkRows = 5000

	currentSnapshotID = "current"
)

// datasetChunk is one slice of a dataset. A snapshot is the set of chunks
// sharing a generation.
type datasetChunk struct {
	ID           string                     `bson:"_id"`
	Generation   string                     `bson:"generation"`
	Kind         models.DatasetKind         `bson:"kind"`
	Seq          int                        `bson:"seq"`
	SavedAt      time.Time                  `bson:"saved_at"`
	Transactions []models.TransactionRecord `bson:"transactions,omitempty"`
	Customers    []models.CustomerRecord    `bson:"customers,omitempty"`
	Strategies   []models.StrategyMapping   `bson:"strategies,omitempty"`
}

// snapshotManifest points at the generation Load should read.
type snapshotManifest struct {
	ID         string    `bson:"_id"`
	Generation string    `bson:"generation"`
	Chunks     int       `bson:"chunks"`
	SavedAt    time.Time `bson:"saved_at"`
}

// MongoSnapshotter stores each dataset as numbered chunk documents. A save
// writes a new generation of chunks, then switches the manifest to it, so
// a failed save leaves the previous snapshot readable.
type MongoSnapshotter struct {
	client    *mongo.Client
	chunks    *mongo.Collection
	manifest  *mongo.Collection
	chunkRows int
}

// ConnectMongo dials uri and checks the primary is reachable.
func ConnectMongo(ctx context.Context, uri, database string) (*MongoSnapshotter, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("connect mongodb: %w", err)
	}

	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping mongodb: %w", err)
	}

	db := client.Database(database)
	m := &MongoSnapshotter{
		client:    client,
		chunks:    db.Collection(DatasetsCollection),
		manifest:  db.Collection(SnapshotsCollection),
		chunkRows: DefaultChunkRows,
	}

	_, err = m.chunks.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "generation", Value: 1}, {Key: "kind", Value: 1}, {Key: "seq", Value: 1}},
	})
	if err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("create chunk index: %w", err)
	}
	return m, nil
}

func (m *MongoSnapshotter) Save(ctx context.Context, ds models.Datasets) error {
	generation := uuid.NewString()
	now := time.Now().UTC()
	docs := chunkDatasets(generation, now, ds, m.chunkRows)

	if len(docs) > 0 {
		batch := make([]any, len(docs))
		for i := range docs {
			batch[i] = docs[i]
		}
		if _, err := m.chunks.InsertMany(ctx, batch); err != nil {
			_, _ = m.chunks.DeleteMany(ctx, bson.M{"generation": generation})
			return fmt.Errorf("save dataset chunks: %w", err)
		}
	}

	manifest := snapshotManifest{ID: currentSnapshotID, Generation: generation, Chunks: len(docs), SavedAt: now}
	_, err := m.manifest.ReplaceOne(ctx, bson.M{"_id": currentSnapshotID}, manifest, options.Replace().SetUpsert(true))
	if err != nil {
		_, _ = m.chunks.DeleteMany(ctx, bson.M{"generation": generation})
		return fmt.Errorf("save snapshot manifest: %w", err)
	}

	if _, err := m.chunks.DeleteMany(ctx, bson.M{"generation": bson.M{"$ne": generation}}); err != nil {
		return fmt.Errorf("prune stale chunks: %w", err)
	}
	return nil
}

func (m *MongoSnapshotter) Load(ctx context.Context) (models.Datasets, error) {
	var manifest snapshotManifest
	err := m.manifest.FindOne(ctx, bson.M{"_id": currentSnapshotID}).Decode(&manifest)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return models.Datasets{}, ErrNoSnapshot
	}
	if err != nil {
		return models.Datasets{}, fmt.Errorf("find snapshot manifest: %w", err)
	}

	findOpts := options.Find().SetSort(bson.D{{Key: "kind", Value: 1}, {Key: "seq", Value: 1}})
	cursor, err := m.chunks.Find(ctx, bson.M{"generation": manifest.Generation}, findOpts)
	if err != nil {
		return models.Datasets{}, fmt.Errorf("find dataset chunks: %w", err)
	}
	var docs []datasetChunk
	if err := cursor.All(ctx, &docs); err != nil {
		return models.Datasets{}, fmt.Errorf("decode dataset chunks: %w", err)
	}
	if len(docs) != manifest.Chunks {
		return models.Datasets{}, fmt.Errorf("snapshot %s has %d of %d chunks", manifest.Generation, len(docs), manifest.Chunks)
	}
	return assembleChunks(docs), nil
}

func (m *MongoSnapshotter) Close(ctx context.Context) error {
	if err := m.client.Disconnect(ctx); err != nil && !errors.Is(err, mongo.ErrClientDisconnected) {
		return fmt.Errorf("disconnect mongodb: %w", err)
	}
	return nil
}

// chunkDatasets splits every non-empty dataset into documents of at most
// rows records, numbered from 0 within each kind.
func chunkDatasets(generation string, savedAt time.Time, ds models.Datasets, rows int) []datasetChunk {
	if rows <= 0 {
		rows = DefaultChunkRows
	}
	var docs []datasetChunk
	add := func(kind models.DatasetKind, seq int, fill func(*datasetChunk)) {
		doc := datasetChunk{
			ID:         fmt.Sprintf("%s:%s:%d", generation, kind, seq),
			Generation: generation,
			Kind:       kind,
			Seq:        seq,
			SavedAt:    savedAt,
		}
		fill(&doc)
		docs = append(docs, doc)
	}

	for seq, part := range splitRows(ds.Transactions, rows) {
		add(models.KindTransactions, seq, func(d *datasetChunk) { d.Transactions = part })
	}
	for seq, part := range splitRows(ds.Customers, rows) {
		add(models.KindCustomers, seq, func(d *datasetChunk) { d.Customers = part })
	}
	for seq, part := range splitRows(ds.Strategies, rows) {
		add(models.KindStrategies, seq, func(d *datasetChunk) { d.Strategies = part })
	}
	return docs
}

func splitRows[T any](records []T, rows int) [][]T {
	var parts [][]T
	for part := range slices.Chunk(records, rows) {
		parts = append(parts, part)
	}
	return parts
}

// assembleChunks rebuilds the datasets from the chunks of one generation,
// whatever order they arrive in.
func assembleChunks(docs []datasetChunk) models.Datasets {
	docs = slices.Clone(docs)
	slices.SortFunc(docs, func(a, b datasetChunk) int {
		return cmp.Or(cmp.Compare(a.Kind, b.Kind), cmp.Compare(a.Seq, b.Seq))
	})

	var ds models.Datasets
	for _, doc := range docs {
		switch doc.Kind {
		case models.KindTransactions:
			ds.Transactions = append(ds.Transactions, doc.Transactions...)
		case models.KindCustomers:
			ds.Customers = append(ds.Customers, doc.Customers...)
		case models.KindStrategies:
			ds.Strategies = append(ds.Strategies, doc.Strategies...)
		}
	}
	return ds
}
