package s3

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"exchangeflow/config"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// artifactExts lists the extensions of files produced by a run.
var artifactExts = map[string]bool{
	".csv":  true,
	".xlsx": true,
	".png":  true,
}

// PutObjectAPI is the subset of the S3 client used by Uploader.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Uploader copies run artifacts to <prefix>/<run_id>/ in a bucket.
type Uploader struct {
	client PutObjectAPI
	bucket string
	prefix string
	logger *zap.Logger
}

// NewUploader builds an S3 client from the default AWS credential chain.
func NewUploader(ctx context.Context, cfg config.S3Config, logger *zap.Logger) (*Uploader, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewUploaderWithClient(s3.NewFromConfig(awsCfg), cfg, logger), nil
}

func NewUploaderWithClient(client PutObjectAPI, cfg config.S3Config, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Uploader{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}
}

// Key returns the object key for a file name of a run.
func (u *Uploader) Key(runID, name string) string {
	return path.Join(u.prefix, runID, name)
}

// UploadFiles uploads files under <prefix>/<run_id>/<base name> in the given
// order and returns their keys. It stops at the first failed upload.
func (u *Uploader) UploadFiles(ctx context.Context, runID string, files []string) ([]string, error) {
	keys := make([]string, 0, len(files))
	for _, file := range files {
		name := filepath.Base(file)
		key := u.Key(runID, name)
		if err := u.put(ctx, file, key); err != nil {
			return keys, fmt.Errorf("upload %s: %w", name, err)
		}
		u.logger.Debug("uploaded artifact", zap.String("bucket", u.bucket), zap.String("key", key))
		keys = append(keys, key)
	}

	u.logger.Info("artifacts uploaded",
		zap.String("bucket", u.bucket),
		zap.String("prefix", u.Key(runID, "")),
		zap.Int("count", len(keys)),
	)
	return keys, nil
}

// UploadDir uploads the CSV, XLSX and PNG files directly under dir in name
// order.
func (u *Uploader) UploadDir(ctx context.Context, dir, runID string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read output dir: %w", err)
	}

	var files []string
	for _, e := range entries {
		if e.Type().IsRegular() && artifactExts[strings.ToLower(filepath.Ext(e.Name()))] {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(files)

	return u.UploadFiles(ctx, runID, files)
}

func (u *Uploader) put(ctx context.Context, file, key string) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	contentType := mime.TypeByExtension(filepath.Ext(file))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String(contentType),
	})
	return err
}
