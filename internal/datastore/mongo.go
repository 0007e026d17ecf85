package datastore

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/tphakala/screamguard/internal/conf"
	"github.com/tphakala/screamguard/internal/errors"
	"github.com/tphakala/screamguard/internal/logger"
	"github.com/tphakala/screamguard/internal/observability/metrics"
	"github.com/tphakala/screamguard/internal/privacy"
)

const mongoConnectTimeout = 10 * time.Second

// MongoStore implements Interface for MongoDB. Documents keep the flat shape
// older deployments already query: a nested location object plus the audio
// path, with the detection id and source node added.
type MongoStore struct {
	settings   conf.MongoDBSettings
	client     *mongo.Client
	collection *mongo.Collection
	log        logger.Logger
	metrics    *metrics.DatastoreMetrics
}

// NewMongoStore returns an unopened store.
func NewMongoStore(settings conf.MongoDBSettings, log logger.Logger, m *metrics.DatastoreMetrics) *MongoStore {
	if settings.Database == "" {
		settings.Database = conf.DefaultMongoDatabase
	}
	if settings.Collection == "" {
		settings.Collection = conf.DefaultMongoCollection
	}
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &MongoStore{settings: settings, log: log, metrics: m}
}

// Open connects and pings the primary.
func (s *MongoStore) Open(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { observe(s.metrics, BackendMongoDB, metrics.OpDbOpen, start, err) }()

	ctx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(s.settings.URI))
	if err != nil {
		return s.wrap(err, metrics.OpDbOpen)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return s.wrap(err, metrics.OpDbOpen)
	}

	s.client = client
	s.collection = client.Database(s.settings.Database).Collection(s.settings.Collection)
	s.log.Info("MongoDB connected",
		logger.String("uri", privacy.RedactURL(s.settings.URI)),
		logger.String("database", s.settings.Database),
		logger.String("collection", s.settings.Collection))
	return nil
}

// Insert writes one detection document.
func (s *MongoStore) Insert(ctx context.Context, rec *Record) (err error) {
	start := time.Now()
	defer func() { observe(s.metrics, BackendMongoDB, metrics.OpDbInsert, start, err) }()

	if s.collection == nil {
		return errors.Newf("mongodb collection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("backend", BackendMongoDB).
			Build()
	}
	if _, err := s.collection.InsertOne(ctx, document(rec)); err != nil {
		s.log.Error("failed to insert detection",
			logger.String("detection_id", rec.DetectionID),
			logger.Error(err))
		return s.wrap(err, metrics.OpDbInsert)
	}
	return nil
}

// Close disconnects the client.
func (s *MongoStore) Close() (err error) {
	start := time.Now()
	defer func() { observe(s.metrics, BackendMongoDB, metrics.OpDbClose, start, err) }()

	if s.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), mongoConnectTimeout)
	defer cancel()
	if err := s.client.Disconnect(ctx); err != nil {
		return s.wrap(err, metrics.OpDbClose)
	}
	s.client = nil
	s.collection = nil
	return nil
}

func (s *MongoStore) wrap(err error, op string) error {
	return dbError(privacy.WrapError(err), BackendMongoDB, op)
}

// document maps a record to the stored BSON shape.
func document(rec *Record) bson.M {
	return bson.M{
		"detection_id": rec.DetectionID,
		"source":       rec.SourceNode,
		"timestamp":    rec.Timestamp.UTC(),
		"prediction":   rec.Prediction,
		"probability":  rec.Probability,
		"location": bson.M{
			"latitude":  rec.Latitude,
			"longitude": rec.Longitude,
			"accuracy":  rec.Accuracy,
			"address":   rec.Address,
			"source":    rec.LocationSource,
		},
		"audio_path": rec.AudioPath,
	}
}
