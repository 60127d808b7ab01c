package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"logdb-backup/internal/config"
	opserrors "logdb-backup/internal/errors"
)

// OffsiteUploader copies a finished artifact and its manifest to a
// remote location.
type OffsiteUploader interface {
	Upload(ctx context.Context, artifactPath string, manifest *Manifest) error
}

// S3Uploader uploads artifacts to an S3 bucket under
// <prefix>/<tier>/<artifact>.
type S3Uploader struct {
	client *s3.S3
	bucket string
	prefix string
}

// NewS3Uploader creates an uploader from the offsite configuration.
// When no static credentials are configured the default AWS chain
// (env, shared config, instance role) applies.
func NewS3Uploader(cfg *config.S3Config) (*S3Uploader, error) {
	if cfg == nil {
		return nil, opserrors.NewConfigurationError("S3 offsite configuration is required", nil)
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.AccessKey != "" {
		awsCfg.Credentials = credentials.NewStaticCredentials(cfg.AccessKey, cfg.SecretKey, "")
	}

	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, opserrors.NewStorageError("failed to create AWS session", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "backups"
	}

	return &S3Uploader{
		client: s3.New(sess),
		bucket: cfg.Bucket,
		prefix: prefix,
	}, nil
}

// Upload puts the artifact and its manifest sidecar into the bucket.
func (u *S3Uploader) Upload(ctx context.Context, artifactPath string, manifest *Manifest) error {
	data, err := os.ReadFile(artifactPath)
	if err != nil {
		return opserrors.NewStorageError("failed to read artifact for upload", err)
	}

	key := path.Join(u.prefix, string(manifest.Tier), path.Base(artifactPath))
	_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/octet-stream"),
		Metadata: map[string]*string{
			"backup-id": aws.String(manifest.ID),
			"kind":      aws.String(string(manifest.Kind)),
			"tier":      aws.String(string(manifest.Tier)),
			"checksum":  aws.String(manifest.Checksum),
		},
	})
	if err != nil {
		return opserrors.NewStorageError("failed to upload artifact to S3", err)
	}

	manifestData, err := json.Marshal(manifest)
	if err != nil {
		return opserrors.NewStorageError("failed to marshal manifest for upload", err)
	}
	_, err = u.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key + ManifestSuffix),
		Body:        bytes.NewReader(manifestData),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return opserrors.NewStorageError("failed to upload manifest to S3", err)
	}
	return nil
}
