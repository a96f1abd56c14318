package vectorstore

import (
	"context"
	"crypto/tls"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/xxxsen/docrag/internal/model"
)

const defaultQdrantCollection = "docrag_chunks"

type QdrantConfig struct {
	Addr       string `json:"addr"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
	UseTLS     bool   `json:"use_tls"`
}

func init() {
	Register("qdrant", func(args interface{}, opts Options) (Store, error) {
		cfg := &QdrantConfig{}
		if err := decodeConfig(args, cfg); err != nil {
			return nil, err
		}
		return OpenQdrantStore(context.Background(), cfg)
	})
}

// QdrantStore is the approximate backend: Qdrant answers with its HNSW graph,
// filtered by keyword payload indexes on the scope fields.
type QdrantStore struct {
	conn        *grpc.ClientConn
	points      qdrant.PointsClient
	collections qdrant.CollectionsClient
	collection  string
	apiKey      string
}

func OpenQdrantStore(ctx context.Context, cfg *QdrantConfig) (*QdrantStore, error) {
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		addr = "localhost:6334"
	}
	creds := insecure.NewCredentials()
	if cfg.UseTLS {
		creds = credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})
	}
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("connect qdrant: %w", err)
	}
	s := &QdrantStore{
		conn:        conn,
		points:      qdrant.NewPointsClient(conn),
		collections: qdrant.NewCollectionsClient(conn),
		collection:  cfg.Collection,
		apiKey:      cfg.APIKey,
	}
	if s.collection == "" {
		s.collection = defaultQdrantCollection
	}
	if err := s.ensureCollection(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return s, nil
}

func (s *QdrantStore) withAuth(ctx context.Context) context.Context {
	if s.apiKey == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, "api-key", s.apiKey)
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx = s.withAuth(ctx)
	logger := logutil.GetLogger(ctx).With(zap.String("collection", s.collection))
	list, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		return storeError("list collections", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == s.collection {
			return nil
		}
	}
	_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &qdrant.VectorsConfig{
			Config: &qdrant.VectorsConfig_Params{
				Params: &qdrant.VectorParams{
					Size:     uint64(model.EmbeddingDimension),
					Distance: qdrant.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return storeError("create collection", err)
	}
	indexes := map[string]qdrant.FieldType{
		"user_id":    qdrant.FieldType_FieldTypeKeyword,
		"project_id": qdrant.FieldType_FieldTypeKeyword,
		"created_at": qdrant.FieldType_FieldTypeInteger,
	}
	for field, fieldType := range indexes {
		ft := fieldType
		wait := true
		if _, err := s.points.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      &ft,
			Wait:           &wait,
		}); err != nil {
			return storeError("create payload index "+field, err)
		}
	}
	logger.Info("qdrant collection created")
	return nil
}

func (s *QdrantStore) Type() string {
	return "qdrant"
}

func (s *QdrantStore) Begin(ctx context.Context) (Batch, error) {
	return &qdrantBatch{store: s}, nil
}

func (s *QdrantStore) QueryNearest(ctx context.Context, vec []float32, scope model.Scope, k int, minSimilarity float64) ([]model.ScoredChunk, error) {
	if err := validateQuery(vec, scope); err != nil {
		return nil, err
	}
	threshold := float32(minSimilarity)
	resp, err := s.points.Search(s.withAuth(ctx), &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vec,
		Filter:         scopeFilter(scope),
		Limit:          uint64(normalizeK(k)),
		ScoreThreshold: &threshold,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
	})
	if err != nil {
		return nil, storeError("search", err)
	}
	out := make([]model.ScoredChunk, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		sim := float64(point.GetScore())
		// the server threshold is inclusive
		if sim <= minSimilarity {
			continue
		}
		chunk, err := chunkFromPayload(point.GetId(), point.GetPayload())
		if err != nil {
			return nil, err
		}
		out = append(out, model.ScoredChunk{Chunk: chunk, Similarity: sim})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Similarity != out[j].Similarity {
			return out[i].Similarity > out[j].Similarity
		}
		return out[i].Chunk.CreatedAt < out[j].Chunk.CreatedAt
	})
	return out, nil
}

func (s *QdrantStore) Recent(ctx context.Context, scope model.Scope, limit int) ([]model.Chunk, error) {
	if err := validateScope(scope); err != nil {
		return nil, err
	}
	n := uint32(normalizeLimit(limit))
	direction := qdrant.Direction_Desc
	resp, err := s.points.Scroll(s.withAuth(ctx), &qdrant.ScrollPoints{
		CollectionName: s.collection,
		Filter:         scopeFilter(scope),
		Limit:          &n,
		WithPayload:    &qdrant.WithPayloadSelector{SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: true}},
		OrderBy:        &qdrant.OrderBy{Key: "created_at", Direction: &direction},
	})
	if err != nil {
		return nil, storeError("scroll", err)
	}
	out := make([]model.Chunk, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		chunk, err := chunkFromPayload(point.GetId(), point.GetPayload())
		if err != nil {
			return nil, err
		}
		out = append(out, chunk)
	}
	return out, nil
}

func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// qdrantBatch buffers points client side and sends them in one upsert, so
// a rolled back batch never reaches the server.
type qdrantBatch struct {
	store   *QdrantStore
	mu      sync.Mutex
	pending []*qdrant.PointStruct
	done    bool
}

func (b *qdrantBatch) Insert(ctx context.Context, chunk *model.Chunk) (string, error) {
	if err := validateChunk(chunk); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return "", fmt.Errorf("batch already finished")
	}
	meta, err := encodeMetadata(chunk.Metadata)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()
	b.pending = append(b.pending, &qdrant.PointStruct{
		Id: &qdrant.PointId{PointIdOptions: &qdrant.PointId_Uuid{Uuid: id}},
		Vectors: &qdrant.Vectors{
			VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: chunk.Embedding}},
		},
		Payload: map[string]*qdrant.Value{
			"content":    stringValue(chunk.Content),
			"metadata":   stringValue(meta),
			"user_id":    stringValue(chunk.UserID),
			"project_id": stringValue(chunk.ProjectID),
			"created_at": {Kind: &qdrant.Value_IntegerValue{IntegerValue: nextTimestamp()}},
		},
	})
	chunk.ID = id
	return id, nil
}

func (b *qdrantBatch) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.done {
		return fmt.Errorf("batch already finished")
	}
	b.done = true
	if len(b.pending) == 0 {
		return nil
	}
	wait := true
	_, err := b.store.points.Upsert(b.store.withAuth(ctx), &qdrant.UpsertPoints{
		CollectionName: b.store.collection,
		Wait:           &wait,
		Points:         b.pending,
	})
	b.pending = nil
	if err != nil {
		return storeError("upsert", err)
	}
	return nil
}

func (b *qdrantBatch) Rollback(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.done = true
	b.pending = nil
	return nil
}

func scopeFilter(scope model.Scope) *qdrant.Filter {
	return &qdrant.Filter{
		Must: []*qdrant.Condition{
			keywordCondition("user_id", scope.UserID),
			keywordCondition("project_id", scope.ProjectID),
		},
	}
}

func keywordCondition(key, value string) *qdrant.Condition {
	return &qdrant.Condition{
		ConditionOneOf: &qdrant.Condition_Field{
			Field: &qdrant.FieldCondition{
				Key:   key,
				Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: value}},
			},
		},
	}
}

func stringValue(v string) *qdrant.Value {
	return &qdrant.Value{Kind: &qdrant.Value_StringValue{StringValue: v}}
}

func chunkFromPayload(id *qdrant.PointId, payload map[string]*qdrant.Value) (model.Chunk, error) {
	chunk := model.Chunk{
		ID:        id.GetUuid(),
		Content:   payload["content"].GetStringValue(),
		UserID:    payload["user_id"].GetStringValue(),
		ProjectID: payload["project_id"].GetStringValue(),
		CreatedAt: payload["created_at"].GetIntegerValue(),
	}
	meta, err := decodeMetadata([]byte(payload["metadata"].GetStringValue()))
	if err != nil {
		return model.Chunk{}, err
	}
	chunk.Metadata = meta
	return chunk, nil
}
