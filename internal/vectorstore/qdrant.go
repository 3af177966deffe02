package vectorstore

import (
	"context"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

var tracer = otel.Tracer("github.com/fyrsmithlabs/repoindexer/internal/vectorstore/qdrant")

const (
	providerQdrant = "qdrant"

	// Payload keys used by QdrantStore alongside record metadata.
	payloadNamespace = "namespace"
	payloadID        = "id"
)

// collectionNamePattern validates collection names.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,64}$`)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost"
	Host string

	// Port is the gRPC port (not the 6333 REST port). Default: 6334
	Port int

	// CollectionName holds every namespace. Default: "github_code"
	CollectionName string

	// APIKey is sent with every call when set.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool

	// Distance is the similarity metric. Default: Cosine
	Distance qdrant.Distance

	// MaxMessageSize bounds gRPC messages. Default: 50MB
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.CollectionName == "" {
		c.CollectionName = "github_code"
	}
	if c.Distance == 0 {
		c.Distance = qdrant.Distance_Cosine
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port: %d", ErrInvalidConfig, c.Port)
	}
	if !collectionNamePattern.MatchString(c.CollectionName) {
		return fmt.Errorf("%w: collection name must match ^[a-z0-9_]{1,64}$, got %q", ErrInvalidConfig, c.CollectionName)
	}
	return nil
}

// qdrantClient is the subset of *qdrant.Client the store uses.
type qdrantClient interface {
	CollectionExists(ctx context.Context, collectionName string) (bool, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	CreateFieldIndex(ctx context.Context, request *qdrant.CreateFieldIndexCollection) (*qdrant.UpdateResult, error)
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Get(ctx context.Context, request *qdrant.GetPoints) ([]*qdrant.RetrievedPoint, error)
	Close() error
}

// QdrantStore implements Store on a single Qdrant collection. The collection
// is created on first upsert, sized to the first record's vector.
type QdrantStore struct {
	client qdrantClient
	config QdrantConfig
	logger *zap.Logger

	mu    sync.Mutex
	ready bool
}

// NewQdrantStore connects to Qdrant.
func NewQdrantStore(config QdrantConfig, logger *zap.Logger) (*QdrantStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if !config.UseTLS {
		logger.Warn("Qdrant gRPC using plaintext (TLS disabled)",
			zap.String("host", config.Host), zap.Int("port", config.Port))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return newQdrantStore(client, config, logger), nil
}

func newQdrantStore(client qdrantClient, config QdrantConfig, logger *zap.Logger) *QdrantStore {
	return &QdrantStore{client: client, config: config, logger: logger}
}

// PointID maps a namespaced record ID to a deterministic Qdrant UUID so
// repeated upserts overwrite the same point.
func PointID(namespace, id string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(namespace+"\x00"+id)).String()
}

// ensureCollection creates the collection with the given dimension unless
// it already exists.
func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ready {
		return nil
	}

	ctx, span := tracer.Start(ctx, "QdrantStore.EnsureCollection")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.Int("vector_size", dimension),
	)

	exists, err := s.client.CollectionExists(ctx, s.config.CollectionName)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("checking collection %s: %w", s.config.CollectionName, err)
	}
	if !exists {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.config.CollectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: s.config.Distance,
			}),
		})
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("creating collection %s: %w", s.config.CollectionName, err)
		}
		if _, err := s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.config.CollectionName,
			FieldName:      payloadNamespace,
			FieldType:      qdrant.FieldType_FieldTypeKeyword.Enum(),
		}); err != nil {
			// Filtering still works without the index, only slower.
			s.logger.Warn("creating namespace index failed", zap.Error(err))
		}
		s.logger.Info("created collection",
			zap.String("collection", s.config.CollectionName),
			zap.Int("vector_size", dimension))
	}
	s.ready = true
	return nil
}

// Upsert writes records as points carrying namespace and metadata payload.
func (s *QdrantStore) Upsert(ctx context.Context, namespace string, records []Record) (err error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Upsert")
	defer span.End()
	span.SetAttributes(
		attribute.String("collection", s.config.CollectionName),
		attribute.String("namespace", namespace),
		attribute.Int("record_count", len(records)),
	)

	start := time.Now()
	defer func() {
		recordUpsert(providerQdrant, len(records), start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		span.SetStatus(codes.Ok, "success")
	}()

	if err := validateUpsert(namespace, records); err != nil {
		return err
	}
	if err := s.ensureCollection(ctx, len(records[0].Vector)); err != nil {
		return fmt.Errorf("%w: %v", ErrWriteFailed, err)
	}

	points := make([]*qdrant.PointStruct, len(records))
	for i, r := range records {
		payload := make(map[string]*qdrant.Value, len(r.Metadata)+2)
		for k, v := range r.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}
		payload[payloadNamespace] = qdrant.NewValueString(namespace)
		payload[payloadID] = qdrant.NewValueString(r.ID)

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(namespace, r.ID)),
			Vectors: denseVectors(r.Vector),
			Payload: payload,
		}
	}

	wait := true
	if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.config.CollectionName,
		Wait:           &wait,
		Points:         points,
	}); err != nil {
		return fmt.Errorf("%w: upserting to %s: %v", ErrWriteFailed, s.config.CollectionName, err)
	}
	return nil
}

// denseVectors sets the plain data field, which every server version accepts.
func denseVectors(v []float32) *qdrant.Vectors {
	return &qdrant.Vectors{
		VectorsOptions: &qdrant.Vectors_Vector{Vector: &qdrant.Vector{Data: v}},
	}
}

// Get returns the point for namespace and id.
func (s *QdrantStore) Get(ctx context.Context, namespace, id string) (*Record, error) {
	ctx, span := tracer.Start(ctx, "QdrantStore.Get")
	defer span.End()

	points, err := s.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: s.config.CollectionName,
		Ids:            []*qdrant.PointId{qdrant.NewIDUUID(PointID(namespace, id))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(true),
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("getting %s: %w", id, err)
	}
	if len(points) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	p := points[0]
	rec := &Record{ID: id, Metadata: make(map[string]string)}
	if v := p.GetVectors().GetVector(); v != nil {
		rec.Vector = v.GetData()
	}
	for k, v := range p.GetPayload() {
		if k == payloadNamespace || k == payloadID {
			continue
		}
		if sv, ok := v.GetKind().(*qdrant.Value_StringValue); ok {
			rec.Metadata[k] = sv.StringValue
		}
	}
	return rec, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}
