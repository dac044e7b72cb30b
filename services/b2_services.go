package services

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"path"

	"github.com/kurin/blazer/b2"
)

// BackupStore keeps an off-site copy of uploaded bytes.
type BackupStore interface {
	Put(ctx context.Context, objectName, contentType string, content io.Reader) (string, error)
	Delete(ctx context.Context, objectName string) error
}

type B2Service struct {
	client     *b2.Client
	bucketName string
	bucket     *b2.Bucket
}

func NewB2Service(ctx context.Context, keyID, applicationKey, bucketName string) (*B2Service, error) {
	client, err := b2.NewClient(ctx, keyID, applicationKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create B2 client: %w", err)
	}

	bucket, err := client.Bucket(ctx, bucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket %s: %w", bucketName, err)
	}

	return &B2Service{
		client:     client,
		bucketName: bucketName,
		bucket:     bucket,
	}, nil
}

// BackupObjectName is the bucket key for a student file.
func BackupObjectName(teacherID uint, civilID, systemName string) string {
	return path.Join("teachers", fmt.Sprint(teacherID), civilID, systemName)
}

// Put streams content to the bucket and returns its SHA1.
func (s *B2Service) Put(ctx context.Context, objectName, contentType string, content io.Reader) (string, error) {
	obj := s.bucket.Object(objectName)
	writer := obj.NewWriter(ctx, b2.WithAttrsOption(&b2.Attrs{ContentType: contentType}))

	hasher := sha1.New()
	if _, err := io.Copy(io.MultiWriter(writer, hasher), content); err != nil {
		writer.Close()
		return "", fmt.Errorf("failed to upload %s to B2: %w", objectName, err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to close B2 writer: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

func (s *B2Service) Delete(ctx context.Context, objectName string) error {
	if err := s.bucket.Object(objectName).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s from B2: %w", objectName, err)
	}
	return nil
}
