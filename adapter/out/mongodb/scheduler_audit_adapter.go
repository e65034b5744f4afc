// Package mongodb implements MongoDB adapters for the application.
package mongodb

import (
	"context"
	"time"

	"scheduler_server/core/domain"
	"scheduler_server/pkg/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	collectionAuditLog = "scheduling_audit_log"

	// Audit entries expire after 90 days via a TTL index.
	auditRetention = 90 * 24 * time.Hour

	auditWriteTimeout = 3 * time.Second
)

// AuditAdapter implements out.AuditRepository on an append-only MongoDB
// collection. Every write is best-effort: failures are logged and dropped,
// never returned, so audit trouble cannot break the operation it records.
type AuditAdapter struct {
	collection *mongo.Collection
	log        *logger.Logger
}

// NewAuditAdapter creates the adapter. A nil database yields a disabled
// adapter whose appends are no-ops.
func NewAuditAdapter(db *mongo.Database) *AuditAdapter {
	a := &AuditAdapter{log: logger.WithField("component", "audit")}
	if db != nil {
		a.collection = db.Collection(collectionAuditLog)
	}
	return a
}

// EnsureIndexes creates the query and retention indexes.
func (a *AuditAdapter) EnsureIndexes(ctx context.Context) error {
	if a.collection == nil {
		return nil
	}
	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "operation", Value: 1}},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
	}
	_, err := a.collection.Indexes().CreateMany(ctx, indexes)
	return err
}

// auditDocument is the MongoDB document structure.
type auditDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id,omitempty"`
	Operation string             `bson:"operation"`
	ErrorCode string             `bson:"error_code,omitempty"`
	Message   string             `bson:"message"`
	Context   map[string]any     `bson:"context,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
}

// Append writes one audit entry. The write gets its own short deadline so
// a slow mongo cannot stall the calling operation, and any failure is
// swallowed after logging.
func (a *AuditAdapter) Append(ctx context.Context, rec *domain.AuditRecord) {
	if a.collection == nil || rec == nil {
		return
	}

	doc := auditDocument{
		Operation: rec.Operation,
		ErrorCode: rec.ErrorCode,
		Message:   rec.Message,
		Context:   rec.Context,
		Timestamp: rec.Timestamp,
	}
	if doc.Timestamp.IsZero() {
		doc.Timestamp = time.Now()
	}
	if rec.UserID != nil {
		doc.UserID = rec.UserID.String()
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditWriteTimeout)
	defer cancel()

	if _, err := a.collection.InsertOne(writeCtx, doc); err != nil {
		a.log.WithError(err).Warn("audit write dropped")
	}
}
