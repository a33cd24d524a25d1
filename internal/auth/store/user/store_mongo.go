package user

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"kycgate/internal/auth/models"
	kyc "kycgate/internal/kyc/models"
	id "kycgate/pkg/domain"
	"kycgate/pkg/platform/sentinel"
)

const usersCollection = "users"

// userDocument is the stored shape. The KYC data is kept as a nested
// document so documents can be appended with $push.
type userDocument struct {
	ID           string    `bson:"_id"`
	Email        string    `bson:"email"`
	PasswordHash string    `bson:"password_hash"`
	FullName     string    `bson:"full_name"`
	CreatedAt    time.Time `bson:"created_at"`
	UpdatedAt    time.Time `bson:"updated_at"`
	Version      int64     `bson:"version"`
	KYCStatus    string    `bson:"kyc_status"`
	KYCVerified  bool      `bson:"is_kyc_verified"`
	KYCData      bson.M    `bson:"kyc_data,omitempty"`
}

// MongoStore keeps users in a MongoDB collection.
type MongoStore struct {
	coll *mongo.Collection
}

func NewMongo(db *mongo.Database) *MongoStore {
	return &MongoStore{coll: db.Collection(usersCollection)}
}

// EnsureIndexes creates the unique email index and the status index used by
// the pending-review listing.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "kyc_status", Value: 1}, {Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}
	return nil
}

func (s *MongoStore) Create(ctx context.Context, user *models.User) error {
	doc, err := toDocument(user)
	if err != nil {
		return err
	}
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *MongoStore) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	return s.findOne(ctx, bson.D{{Key: "_id", Value: userID.String()}})
}

func (s *MongoStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.D{{Key: "email", Value: models.NormalizeEmail(email)}})
}

func (s *MongoStore) findOne(ctx context.Context, filter bson.D) (*models.User, error) {
	var doc userDocument
	if err := s.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return fromDocument(&doc)
}

func (s *MongoStore) UpdateKYC(ctx context.Context, user *models.User) error {
	data, err := dataToBSON(user.Data)
	if err != nil {
		return err
	}
	set := bson.D{
		{Key: "kyc_status", Value: string(user.Status)},
		{Key: "is_kyc_verified", Value: user.Verified},
		{Key: "updated_at", Value: user.UpdatedAt},
	}
	update := bson.D{{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}}}
	if data != nil {
		set = append(set, bson.E{Key: "kyc_data", Value: data})
	} else {
		update = append(update, bson.E{Key: "$unset", Value: bson.D{{Key: "kyc_data", Value: ""}}})
	}
	update = append(update, bson.E{Key: "$set", Value: set})

	filter := bson.D{{Key: "_id", Value: user.ID.String()}, {Key: "version", Value: user.Version}}
	res, err := s.coll.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("update user kyc: %w", err)
	}
	if res.MatchedCount == 0 {
		n, err := s.coll.CountDocuments(ctx, bson.D{{Key: "_id", Value: user.ID.String()}})
		if err != nil {
			return fmt.Errorf("check user exists: %w", err)
		}
		if n == 0 {
			return sentinel.ErrNotFound
		}
		return sentinel.ErrVersionConflict
	}
	user.Version++
	return nil
}

// AppendDocument pushes doc onto kyc_data.documents, creating the nested
// document when the user has not submitted yet.
func (s *MongoStore) AppendDocument(ctx context.Context, userID id.UserID, doc kyc.Document, now time.Time) error {
	entry, err := toBSON(doc)
	if err != nil {
		return err
	}
	update := bson.D{
		{Key: "$push", Value: bson.D{{Key: "kyc_data.documents", Value: entry}}},
		{Key: "$set", Value: bson.D{{Key: "updated_at", Value: now}}},
		{Key: "$inc", Value: bson.D{{Key: "version", Value: 1}}},
	}
	res, err := s.coll.UpdateOne(ctx, bson.D{{Key: "_id", Value: userID.String()}}, update)
	if err != nil {
		return fmt.Errorf("append document: %w", err)
	}
	if res.MatchedCount == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListByKYCStatus(ctx context.Context, statuses ...kyc.Status) ([]*models.User, error) {
	values := make([]string, len(statuses))
	for i, st := range statuses {
		values[i] = string(st)
	}
	filter := bson.D{{Key: "kyc_status", Value: bson.D{{Key: "$in", Value: values}}}}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	cur, err := s.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("list users by kyc status: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]*models.User, 0)
	for cur.Next(ctx) {
		var doc userDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode user: %w", err)
		}
		user, err := fromDocument(&doc)
		if err != nil {
			return nil, err
		}
		out = append(out, user)
	}
	return out, cur.Err()
}

func toDocument(u *models.User) (*userDocument, error) {
	data, err := dataToBSON(u.Data)
	if err != nil {
		return nil, err
	}
	return &userDocument{
		ID:           u.ID.String(),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FullName:     u.FullName,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
		Version:      u.Version,
		KYCStatus:    string(u.Status),
		KYCVerified:  u.Verified,
		KYCData:      data,
	}, nil
}

func fromDocument(doc *userDocument) (*models.User, error) {
	userID, err := id.ParseUserID(doc.ID)
	if err != nil {
		return nil, fmt.Errorf("decode user id: %w", err)
	}
	user := &models.User{
		ID:           userID,
		Email:        doc.Email,
		PasswordHash: doc.PasswordHash,
		FullName:     doc.FullName,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
		Version:      doc.Version,
	}
	user.Status = kyc.Status(doc.KYCStatus)
	user.Verified = doc.KYCVerified
	if doc.KYCData != nil {
		var data kyc.Data
		if err := fromBSON(doc.KYCData, &data); err != nil {
			return nil, err
		}
		if data.Status == "" {
			data.Status = user.Status
		}
		user.Data = &data
	}
	return user, nil
}

func dataToBSON(d *kyc.Data) (bson.M, error) {
	if d == nil {
		return nil, nil
	}
	c := *d
	if c.Documents == nil {
		c.Documents = []kyc.Document{}
	}
	return toBSON(c)
}

// toBSON goes through the JSON encoding so decimal amounts and timestamps
// keep the same representation as in the HTTP API and the Postgres column.
func toBSON(v any) (bson.M, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode kyc document: %w", err)
	}
	var m bson.M
	if err := bson.UnmarshalExtJSON(raw, false, &m); err != nil {
		return nil, fmt.Errorf("convert kyc document: %w", err)
	}
	return m, nil
}

func fromBSON(m bson.M, v any) error {
	raw, err := bson.MarshalExtJSON(m, false, false)
	if err != nil {
		return fmt.Errorf("convert kyc document: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode kyc document: %w", err)
	}
	return nil
}
