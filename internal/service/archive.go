package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/stepwise-ai/stepwise/internal/model"
)

// Archiver receives expired decompositions before they are deleted.
type Archiver interface {
	Store(ctx context.Context, batch []model.Decomposition) error
}

// ObjectStoreArchiver writes expired decompositions to an S3-compatible
// bucket as JSON Lines, one object per sweep batch.
type ObjectStoreArchiver struct {
	client *minio.Client
	bucket string
}

func NewObjectStoreArchiver(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*ObjectStoreArchiver, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client: %w", err)
	}
	return &ObjectStoreArchiver{client: client, bucket: bucket}, nil
}

// EnsureBucket creates the archive bucket when it does not exist yet.
func (a *ObjectStoreArchiver) EnsureBucket(ctx context.Context) error {
	exists, err := a.client.BucketExists(ctx, a.bucket)
	if err != nil {
		return fmt.Errorf("bucket exists: %w", err)
	}
	if exists {
		return nil
	}
	if err := a.client.MakeBucket(ctx, a.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("make bucket %s: %w", a.bucket, err)
	}
	return nil
}

func (a *ObjectStoreArchiver) Store(ctx context.Context, batch []model.Decomposition) error {
	if len(batch) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, dec := range batch {
		if err := enc.Encode(dec); err != nil {
			return fmt.Errorf("encode %s: %w", dec.DecompositionID, err)
		}
	}

	name := fmt.Sprintf("decompositions/%s-%d.jsonl",
		time.Now().UTC().Format("20060102"), time.Now().UnixNano())
	if _, err := a.client.PutObject(ctx, a.bucket, name, &buf, int64(buf.Len()), minio.PutObjectOptions{
		ContentType: "application/x-ndjson",
	}); err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}
