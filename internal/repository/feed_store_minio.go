package repository

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/minio/minio-go/v7"

	"shopsync/feedhub/internal/model"
)

// Internal adapter interface to enable mocking without a real MinIO server.
type minioAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error)
	StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error)
}

// Wrapper to adapt *minio.Client to minioAPI.
type minioClientWrapper struct{ c *minio.Client }

func (w minioClientWrapper) BucketExists(ctx context.Context, bucketName string) (bool, error) {
	return w.c.BucketExists(ctx, bucketName)
}
func (w minioClientWrapper) MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error {
	return w.c.MakeBucket(ctx, bucketName, opts)
}
func (w minioClientWrapper) PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error) {
	return w.c.PutObject(ctx, bucketName, objectName, reader, objectSize, opts)
}
func (w minioClientWrapper) GetObject(ctx context.Context, bucketName, objectName string, opts minio.GetObjectOptions) (io.ReadCloser, error) {
	obj, err := w.c.GetObject(ctx, bucketName, objectName, opts)
	if err != nil {
		return nil, err
	}
	return obj, nil
}
func (w minioClientWrapper) StatObject(ctx context.Context, bucketName, objectName string, opts minio.StatObjectOptions) (minio.ObjectInfo, error) {
	return w.c.StatObject(ctx, bucketName, objectName, opts)
}

var _ FeedStore = (*minioFeedStore)(nil)

type minioFeedStore struct {
	api     minioAPI
	bucket  string
	baseURL string
}

// NewMinioFeedStore creates the MinIO-backed feed store and ensures the
// bucket exists. publicBaseURL, when empty, falls back to the client's
// endpoint plus bucket path.
func NewMinioFeedStore(ctx context.Context, client *minio.Client, bucket, publicBaseURL string) (FeedStore, error) {
	if publicBaseURL == "" {
		publicBaseURL = client.EndpointURL().String() + "/" + bucket
	}
	return newMinioFeedStoreWithAPI(ctx, minioClientWrapper{c: client}, bucket, publicBaseURL)
}

func newMinioFeedStoreWithAPI(ctx context.Context, api minioAPI, bucket, publicBaseURL string) (FeedStore, error) {
	s := &minioFeedStore{
		api:     api,
		bucket:  bucket,
		baseURL: strings.TrimRight(publicBaseURL, "/"),
	}
	if err := s.ensureBucketExists(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket exists: %w", err)
	}
	return s, nil
}

func (s *minioFeedStore) ensureBucketExists(ctx context.Context) error {
	exists, err := s.api.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket: %w", err)
	}
	if !exists {
		if err := s.api.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}
	}
	return nil
}

func (s *minioFeedStore) Put(ctx context.Context, name string, content []byte, contentType string) (string, error) {
	_, err := s.api.PutObject(ctx, s.bucket, name, bytes.NewReader(content), int64(len(content)), minio.PutObjectOptions{
		ContentType: contentType,
	})
	if err != nil {
		return "", fmt.Errorf("upload object: %w", err)
	}
	return s.objectURL(name), nil
}

func (s *minioFeedStore) Get(ctx context.Context, name string) (*model.FeedObject, error) {
	info, err := s.api.StatObject(ctx, s.bucket, name, minio.StatObjectOptions{})
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return nil, nil
		}
		return nil, fmt.Errorf("stat object: %w", err)
	}

	obj, err := s.api.GetObject(ctx, s.bucket, name, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("get object: %w", err)
	}
	defer obj.Close()

	content, err := io.ReadAll(obj)
	if err != nil {
		return nil, fmt.Errorf("read object: %w", err)
	}

	return &model.FeedObject{
		Content:     content,
		ContentType: info.ContentType,
		URL:         s.objectURL(name),
		UploadedAt:  info.LastModified,
	}, nil
}

func (s *minioFeedStore) objectURL(name string) string {
	return s.baseURL + "/" + name
}
