package gcsuploader

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// ModelStore persists serialized classifier models in GCS, one object per
// organization under models/org_<id>.gob. It satisfies classifier.ModelStore.
type ModelStore struct {
	bucket string
}

// NewModelStore creates a model store writing into the given bucket.
func NewModelStore(bucket string) *ModelStore {
	return &ModelStore{bucket: bucket}
}

func (s *ModelStore) objectName(orgID string) string {
	return fmt.Sprintf("models/org_%s.gob", orgID)
}

// SaveModel writes the serialized model for the organization.
func (s *ModelStore) SaveModel(ctx context.Context, orgID string, data []byte) error {
	if err := UploadBytes(ctx, s.bucket, s.objectName(orgID), "application/octet-stream", data); err != nil {
		return fmt.Errorf("SaveModel: org %s: %w", orgID, err)
	}
	return nil
}

// LoadModel reads the serialized model for the organization. A missing
// object is not an error: (nil, nil) signals "never trained".
func (s *ModelStore) LoadModel(ctx context.Context, orgID string) ([]byte, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("LoadModel: creating storage client: %w", err)
	}
	defer client.Close()

	rc, err := client.Bucket(s.bucket).Object(s.objectName(orgID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("LoadModel: opening object for org %s: %w", orgID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("LoadModel: reading bytes for org %s: %w", orgID, err)
	}
	return data, nil
}
