// Package publish uploads discovery documents to S3 compatible object storage.
package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/rs/zerolog"
	"github.com/stupid-simple/pkgledger/fileutils"
	"github.com/stupid-simple/pkgledger/reconcile"
)

const (
	DocumentName = "discovery.json"
	hashMetaKey  = "Xxhash"
)

// ObjectStore is the subset of *minio.Client the publisher needs.
type ObjectStore interface {
	StatObject(ctx context.Context, bucket, object string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
	PutObject(ctx context.Context, bucket, object string, r io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

type StoreParams struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
}

// NewStore connects to an S3 compatible endpoint with static credentials.
func NewStore(params StoreParams) (*minio.Client, error) {
	client, err := minio.New(params.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(params.AccessKey, params.SecretKey, ""),
		Secure: params.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("could not create object storage client: %w", err)
	}
	return client, nil
}

type Publisher struct {
	store  ObjectStore
	bucket string
	logger zerolog.Logger
}

func NewPublisher(store ObjectStore, bucket string, logger zerolog.Logger) *Publisher {
	return &Publisher{
		store:  store,
		bucket: bucket,
		logger: logger,
	}
}

// Publish writes <repo>/discovery.json unless the stored copy already has the
// same content. It reports whether an upload happened.
func (p *Publisher) Publish(ctx context.Context, repo string, entries []reconcile.DiscoveryEntry) (bool, error) {
	if entries == nil {
		entries = []reconcile.DiscoveryEntry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		return false, fmt.Errorf("could not encode discovery document: %w", err)
	}
	sum := fileutils.Digest(data)

	object := ObjectName(repo)
	logger := p.logger.With().Str("bucket", p.bucket).Str("object", object).Str("hash", sum).Logger()

	info, err := p.store.StatObject(ctx, p.bucket, object, minio.StatObjectOptions{})
	switch {
	case err == nil:
		if storedHash(info) == sum {
			logger.Debug().Msg("discovery document unchanged, skipping upload")
			return false, nil
		}
	case minio.ToErrorResponse(err).Code == "NoSuchKey":
	default:
		return false, fmt.Errorf("could not stat %s: %w", object, err)
	}

	_, err = p.store.PutObject(ctx, p.bucket, object, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType:  "application/json",
		UserMetadata: map[string]string{hashMetaKey: sum},
	})
	if err != nil {
		return false, fmt.Errorf("could not upload %s: %w", object, err)
	}
	logger.Info().Int("entries", len(entries)).Int("bytes", len(data)).Msg("discovery document published")
	return true, nil
}

func ObjectName(repo string) string {
	return repo + "/" + DocumentName
}

func storedHash(info minio.ObjectInfo) string {
	for k, v := range info.UserMetadata {
		k = strings.TrimPrefix(strings.ToLower(k), "x-amz-meta-")
		if k == strings.ToLower(hashMetaKey) {
			return v
		}
	}
	return ""
}
