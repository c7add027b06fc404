package storage

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"agreementpdf/retention"
)

const contentTypePDF = "application/pdf"

// ObjectPutter is the slice of the S3 API the uploader needs.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// UploadResult reports where a rendered agreement landed.
type UploadResult struct {
	Bucket   string
	Key      string
	ETag     string
	Location string
}

// Uploader pushes rendered PDFs to the object store under a retention-tier
// key and owns deletion of the local artifact in all cases.
type Uploader struct {
	client ObjectPutter
	bucket string
	policy retention.Policy
	logger *slog.Logger
	now    func() time.Time
}

// NewUploader creates an Uploader. A nil logger defaults to slog.Default and
// a nil clock to time.Now.
func NewUploader(client ObjectPutter, bucket string, policy retention.Policy, logger *slog.Logger, now func() time.Time) *Uploader {
	if logger == nil {
		logger = slog.Default()
	}
	if now == nil {
		now = time.Now
	}
	return &Uploader{
		client: client,
		bucket: bucket,
		policy: policy,
		logger: logger,
		now:    now,
	}
}

// Upload stores the local PDF under the retention-based key and deletes the
// local file afterwards whether or not the put succeeded. Ownership of the
// local path transfers to the Uploader the moment Upload is called.
func (u *Uploader) Upload(ctx context.Context, localPath, filename, agreementNumber, version string, endDate time.Time) (UploadResult, error) {
	defer u.removeLocal(localPath)

	if u.bucket == "" {
		return UploadResult{}, fmt.Errorf("storage: bucket name is not configured")
	}

	body, err := os.ReadFile(localPath)
	if err != nil {
		return UploadResult{}, fmt.Errorf("storage: read %s: %w", localPath, err)
	}

	prefix := u.policy.Prefix(u.now(), endDate)
	key := retention.Key(prefix, agreementNumber, version, filename)

	out, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:               aws.String(u.bucket),
		Key:                  aws.String(key),
		Body:                 bytes.NewReader(body),
		ContentType:          aws.String(contentTypePDF),
		ServerSideEncryption: types.ServerSideEncryptionAes256,
	})
	if err != nil {
		u.logger.Error("agreement pdf upload failed",
			"bucket", u.bucket,
			"key", key,
			"agreement", agreementNumber,
			"error", err.Error(),
		)
		return UploadResult{}, fmt.Errorf("storage: put %s: %w", key, err)
	}

	result := UploadResult{
		Bucket:   u.bucket,
		Key:      key,
		Location: fmt.Sprintf("s3://%s/%s", u.bucket, key),
	}
	if out.ETag != nil {
		result.ETag = *out.ETag
	}

	u.logger.Info("agreement pdf stored",
		"bucket", result.Bucket,
		"key", result.Key,
		"etag", result.ETag,
	)
	return result, nil
}

// removeLocal deletes the temporary artifact. Failure to delete never masks
// the upload outcome.
func (u *Uploader) removeLocal(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		u.logger.Warn("temp pdf cleanup failed", "path", path, "error", err.Error())
	}
}
