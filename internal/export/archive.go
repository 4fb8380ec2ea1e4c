package export

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const archiveBucket = "gridbook-exports"

// Archive keeps a copy of every export in an S3-compatible object store.
type Archive struct {
	client *minio.Client
}

// NewArchive connects to the object store and ensures the bucket exists.
func NewArchive(endpoint, accessKey, secretKey string, useSSL bool) (*Archive, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("connect object store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, archiveBucket)
	if err != nil {
		return nil, fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, archiveBucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("create bucket: %w", err)
		}
	}
	return &Archive{client: client}, nil
}

// StoreAsync uploads an export result in the background. Failures are
// logged, never surfaced to the caller waiting on the download.
func (a *Archive) StoreAsync(result *Result) {
	data := make([]byte, len(result.Data))
	copy(data, result.Data)
	name := fmt.Sprintf("%s/%s", time.Now().UTC().Format("2006-01-02"), result.Filename)
	mime := result.MimeType

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()

		_, err := a.client.PutObject(ctx, archiveBucket, name, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
			ContentType: mime,
		})
		if err != nil {
			log.Printf("export: archive %s: %v", name, err)
		}
	}()
}
