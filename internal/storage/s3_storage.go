package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	aws_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/draggle/rate-my-rez-waterloo/internal/config"
)

// IS3Storage defines the interface for review image storage.
type IS3Storage interface {
	// UploadReviewImage stores a processed review photo and returns its
	// public URL.
	UploadReviewImage(ctx context.Context, propertyID, reviewID string, data []byte, contentType string) (string, error)
}

// s3Storage implements IS3Storage.
type s3Storage struct {
	cfg      *config.Config
	s3Client *s3.Client
}

// NewS3Storage creates a new S3 storage service.
func NewS3Storage(cfg *config.Config) (IS3Storage, error) {
	awsCfg, err := aws_config.LoadDefaultConfig(context.TODO(),
		aws_config.WithRegion(cfg.AwsRegion),
		// Static credentials from config; production deployments should use
		// IAM roles instead.
		aws_config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AwsAccessKeyID,
			cfg.AwsSecretAccessKey,
			"", // session token
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &s3Storage{
		cfg:      cfg,
		s3Client: s3.NewFromConfig(awsCfg),
	}, nil
}

// UploadReviewImage puts the image under a deterministic key so re-processing
// the same review overwrites rather than accumulates objects.
func (s *s3Storage) UploadReviewImage(ctx context.Context, propertyID, reviewID string, data []byte, contentType string) (string, error) {
	objectKey := fmt.Sprintf("reviews/%s/%s.jpg", propertyID, reviewID)

	_, err := s.s3Client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.cfg.AwsS3Bucket),
		Key:         aws.String(objectKey),
		Body:        bytes.NewReader(data),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload review image %s: %w", objectKey, err)
	}

	base := strings.TrimSuffix(s.cfg.ImageBaseS3URL, "/")
	return fmt.Sprintf("%s/%s", base, objectKey), nil
}
