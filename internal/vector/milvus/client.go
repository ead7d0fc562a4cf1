package milvus

import (
	"context"
	"fmt"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/relay-agent/backend/internal/vector"
	"github.com/relay-agent/backend/pkg/logger"
	"github.com/relay-agent/backend/pkg/retry"
)

// Client stores interaction and document vectors in a single Milvus
// collection. Cosine similarity over normalized embeddings keeps search
// scores in [0,1].
type Client struct {
	client         client.Client
	collectionName string
	vectorDim      int
	retryPolicy    retry.Policy
}

func NewClient(endpoint, collectionName string, vectorDim int) (*Client, error) {
	c, err := client.NewGrpcClient(
		context.Background(),
		endpoint,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:         c,
		collectionName: collectionName,
		vectorDim:      vectorDim,
		retryPolicy: retry.Policy{
			MaxAttempts:    3,
			InitialDelay:   200 * time.Millisecond,
			MaxDelay:       2 * time.Second,
			Multiplier:     2.0,
			JitterFraction: 0.1,
			Logger:         logger.GetLogger(),
		},
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Document chunks and processed responses",
		Fields: []*entity.Field{
			{
				Name:       "item_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "64",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "8192",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "512",
				},
			},
			{
				Name:     "provenance",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "query",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "2048",
				},
			},
			{
				Name:     "classification",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "32",
				},
			},
			{
				Name:     "model",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "timestamp",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to build index spec: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

func (m *Client) Upsert(ctx context.Context, items []vector.Item) error {
	if len(items) == 0 {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	ids := make([]string, len(items))
	embeddings := make([][]float32, len(items))
	texts := make([]string, len(items))
	sources := make([]string, len(items))
	provenances := make([]string, len(items))
	queries := make([]string, len(items))
	classifications := make([]string, len(items))
	models := make([]string, len(items))
	timestamps := make([]int64, len(items))

	for i, item := range items {
		ids[i] = item.ID
		embeddings[i] = item.Embedding
		texts[i] = item.Text
		sources[i] = item.Metadata.Source
		provenances[i] = item.Metadata.Provenance
		queries[i] = item.Metadata.Query
		classifications[i] = item.Metadata.Classification
		models[i] = item.Metadata.Model
		timestamps[i] = item.Metadata.Timestamp
	}

	err := retry.Do(ctx, m.retryPolicy, func() error {
		_, err := m.client.Insert(
			ctx,
			m.collectionName,
			"",
			entity.NewColumnVarChar("item_id", ids),
			entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
			entity.NewColumnVarChar("text", texts),
			entity.NewColumnVarChar("source", sources),
			entity.NewColumnVarChar("provenance", provenances),
			entity.NewColumnVarChar("query", queries),
			entity.NewColumnVarChar("classification", classifications),
			entity.NewColumnVarChar("model", models),
			entity.NewColumnInt64("timestamp", timestamps),
		)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: insert failed: %v", vector.ErrUnavailable, err)
	}

	err = m.client.Flush(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("%w: flush failed: %v", vector.ErrUnavailable, err)
	}

	logger.Info("Items upserted into vector store", zap.Int("count", len(items)))

	return nil
}

func (m *Client) Search(ctx context.Context, embedding []float32, topK int) ([]vector.Hit, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	var searchResult []client.SearchResult
	err := retry.Do(ctx, m.retryPolicy, func() error {
		var err error
		searchResult, err = m.client.Search(
			ctx,
			m.collectionName,
			[]string{},
			"",
			[]string{"item_id", "text", "source", "provenance", "query", "classification", "model", "timestamp"},
			[]entity.Vector{entity.FloatVector(embedding)},
			"embedding",
			entity.IP,
			topK,
			sp,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", vector.ErrUnavailable, err)
	}

	hits := make([]vector.Hit, 0)
	for _, sr := range searchResult {
		for i := 0; i < sr.ResultCount; i++ {
			hit := vector.Hit{
				Score: clamp01(float64(sr.Scores[i])),
			}
			if v, err := sr.Fields.GetColumn("item_id").Get(i); err == nil {
				hit.ID, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("text").Get(i); err == nil {
				hit.Text, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("source").Get(i); err == nil {
				hit.Metadata.Source, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("provenance").Get(i); err == nil {
				hit.Metadata.Provenance, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("query").Get(i); err == nil {
				hit.Metadata.Query, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("classification").Get(i); err == nil {
				hit.Metadata.Classification, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("model").Get(i); err == nil {
				hit.Metadata.Model, _ = v.(string)
			}
			if v, err := sr.Fields.GetColumn("timestamp").Get(i); err == nil {
				hit.Metadata.Timestamp, _ = v.(int64)
			}
			hits = append(hits, hit)
		}
	}

	logger.Debug("Vector search completed",
		zap.Int("topK", topK),
		zap.Int("results", len(hits)),
	)

	return hits, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
