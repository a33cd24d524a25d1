package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	id "kycgate/pkg/domain"
	audit "kycgate/pkg/platform/audit"
)

const collection = "kyc_audit_log"

// entryDocument uses a driver-generated ObjectID as _id. ObjectIDs increase
// within a process, which breaks timestamp ties in insertion order.
type entryDocument struct {
	ObjectID      bson.ObjectID `bson:"_id"`
	EntryID       string        `bson:"entry_id"`
	UserID        string        `bson:"user_id"`
	Action        string        `bson:"action"`
	Category      string        `bson:"category"`
	Timestamp     time.Time     `bson:"timestamp"`
	Snapshot      string        `bson:"snapshot,omitempty"`
	Status        string        `bson:"status,omitempty"`
	ReviewerNotes *string       `bson:"reviewer_notes,omitempty"`
	ActorID       string        `bson:"actor_id,omitempty"`
	RequestID     string        `bson:"request_id,omitempty"`
	ClientIP      string        `bson:"client_ip,omitempty"`
	Device        string        `bson:"device,omitempty"`
}

// Store appends audit entries to a MongoDB collection.
type Store struct {
	coll *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{coll: db.Collection(collection)}
}

func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create audit index: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	doc := entryDocument{
		ObjectID:      bson.NewObjectID(),
		EntryID:       entry.ID.String(),
		UserID:        entry.UserID.String(),
		Action:        string(entry.Action),
		Category:      string(entry.Action.Category()),
		Timestamp:     entry.Timestamp,
		Snapshot:      string(entry.Snapshot),
		Status:        entry.Status,
		ReviewerNotes: entry.ReviewerNotes,
		ActorID:       entry.ActorID,
		RequestID:     entry.RequestID,
		ClientIP:      entry.ClientIP,
		Device:        entry.Device,
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *Store) ListByUser(ctx context.Context, userID id.UserID) ([]audit.Entry, error) {
	opts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.coll.Find(ctx, bson.D{{Key: "user_id", Value: userID.String()}}, opts)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer cur.Close(ctx)

	entries := make([]audit.Entry, 0)
	for cur.Next(ctx) {
		var doc entryDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode audit entry: %w", err)
		}
		entryID, err := id.ParseAuditEntryID(doc.EntryID)
		if err != nil {
			return nil, fmt.Errorf("decode audit entry id: %w", err)
		}
		e := audit.Entry{
			ID:            entryID,
			UserID:        userID,
			Action:        audit.Action(doc.Action),
			Timestamp:     doc.Timestamp,
			Status:        doc.Status,
			ReviewerNotes: doc.ReviewerNotes,
			ActorID:       doc.ActorID,
			RequestID:     doc.RequestID,
			ClientIP:      doc.ClientIP,
			Device:        doc.Device,
		}
		if doc.Snapshot != "" {
			e.Snapshot = []byte(doc.Snapshot)
		}
		entries = append(entries, e)
	}
	return entries, cur.Err()
}
