package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const gridFSPrefix = "gridfs://"

// GridFSStore keeps documents in a MongoDB GridFS bucket next to the user
// collection.
type GridFSStore struct {
	bucket *mongo.GridFSBucket
}

func NewGridFSStore(db *mongo.Database) *GridFSStore {
	return &GridFSStore{
		bucket: db.GridFSBucket(options.GridFSBucket().SetName("kyc_documents")),
	}
}

func (s *GridFSStore) Put(ctx context.Context, name, contentType string, content io.Reader) (string, error) {
	opts := options.GridFSUpload().SetMetadata(bson.D{{Key: "content_type", Value: contentType}})
	fileID, err := s.bucket.UploadFromStream(ctx, name, content, opts)
	if err != nil {
		return "", fmt.Errorf("upload to gridfs: %w", err)
	}
	return gridFSPrefix + fileID.Hex(), nil
}

func (s *GridFSStore) Delete(ctx context.Context, ref string) error {
	hex, ok := strings.CutPrefix(ref, gridFSPrefix)
	if !ok {
		return fmt.Errorf("not a gridfs reference: %q", ref)
	}
	fileID, err := bson.ObjectIDFromHex(hex)
	if err != nil {
		return fmt.Errorf("parse gridfs id: %w", err)
	}
	if err := s.bucket.Delete(ctx, fileID); err != nil && !errors.Is(err, mongo.ErrFileNotFound) {
		return fmt.Errorf("delete from gridfs: %w", err)
	}
	return nil
}
