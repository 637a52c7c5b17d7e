package services

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
	appConfig "github.com/cabby-rentals/cabby-api/config"
)

// DocumentStore abstracts S3 for vehicle paperwork and invoice PDFs
type DocumentStore interface {
	Upload(key string, body []byte, contentType string) error
	PresignedURL(key string) (string, error)
	Delete(key string) error
}

// S3DocumentService stores documents in an S3 bucket
type S3DocumentService struct {
	client  *s3.Client
	presign *s3.PresignClient
	bucket  string
}

var documentStoreInstance DocumentStore

// InitDocumentStore initializes the S3-backed document store
func InitDocumentStore() (DocumentStore, error) {
	cfg := appConfig.GetConfig()

	awsConfig, err := config.LoadDefaultConfig(context.TODO(),
		config.WithRegion(cfg.AWSRegion),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsConfig)

	documentStoreInstance = &S3DocumentService{
		client:  client,
		presign: s3.NewPresignClient(client),
		bucket:  cfg.AWSS3Bucket,
	}

	return documentStoreInstance, nil
}

// GetDocumentStore returns the initialized document store instance
func GetDocumentStore() DocumentStore {
	return documentStoreInstance
}

// SetDocumentStore sets the document store instance (primarily for testing)
func SetDocumentStore(store DocumentStore) {
	documentStoreInstance = store
}

// DocumentKey builds a unique S3 key for an uploaded document, preserving
// the original extension
func DocumentKey(prefix, filename string) string {
	return fmt.Sprintf("%s/%s%s", prefix, uuid.NewString(), filepath.Ext(filename))
}

// Upload stores a document under the given key
func (s *S3DocumentService) Upload(key string, body []byte, contentType string) error {
	_, err := s.client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return fmt.Errorf("failed to upload document %s: %w", key, err)
	}
	return nil
}

// PresignedURL generates a time-limited GET URL for a stored document
func (s *S3DocumentService) PresignedURL(key string) (string, error) {
	if key == "" {
		return "", nil
	}

	request, err := s.presign.PresignGetObject(context.TODO(), &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	}, func(opts *s3.PresignOptions) {
		opts.Expires = 24 * time.Hour
	})
	if err != nil {
		return "", fmt.Errorf("failed to presign document %s: %w", key, err)
	}

	return request.URL, nil
}

// Delete removes a stored document
func (s *S3DocumentService) Delete(key string) error {
	if key == "" {
		return nil
	}

	_, err := s.client.DeleteObject(context.TODO(), &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", key, err)
	}
	return nil
}
