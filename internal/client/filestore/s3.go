package filestore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/refkeeper/internal/common"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

// s3API is the subset of *s3.Client used by S3Store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

type presigner interface {
	PresignGetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Config addresses an S3 compatible bucket, MinIO included.
type S3Config struct {
	Endpoint  string
	Region    string
	Bucket    string
	AccessKey string
	SecretKey string
	// LinkExpiry bounds the presigned web links handed out for files.
	LinkExpiry time.Duration
}

// S3Store maps the file store onto one bucket. A file id is its object key;
// a folder id is a key prefix ending in "/", materialised by an empty marker
// object. Revision tags are ETags.
type S3Store struct {
	api        s3API
	presign    presigner
	bucket     string
	linkExpiry time.Duration
	pingTTL    time.Duration
}

func NewS3Store(ctx context.Context, c S3Config) (*S3Store, error) {
	cfg, err := loadDefaultAWSConfig(ctx,
		config.WithRegion(c.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load s3 config: %w", err)
	}

	client := newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.Endpoint != "" {
			o.BaseEndpoint = aws.String(c.Endpoint)
		}
		o.UsePathStyle = true
	})

	return newS3Store(client, s3.NewPresignClient(client), c.Bucket, c.LinkExpiry), nil
}

func newS3Store(api s3API, p presigner, bucket string, linkExpiry time.Duration) *S3Store {
	if linkExpiry <= 0 {
		linkExpiry = 24 * time.Hour
	}
	return &S3Store{api: api, presign: p, bucket: bucket, linkExpiry: linkExpiry, pingTTL: 5 * time.Second}
}

func joinKey(parentID, name string) string {
	if parentID != "" && !strings.HasSuffix(parentID, "/") {
		parentID += "/"
	}
	return parentID + name
}

func parentOf(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	i := strings.LastIndex(trimmed, "/")
	if i < 0 {
		return ""
	}
	return trimmed[:i+1]
}

func nameOf(key string) string {
	trimmed := strings.TrimSuffix(key, "/")
	return trimmed[strings.LastIndex(trimmed, "/")+1:]
}

func firstParent(parents []string) string {
	if len(parents) == 0 {
		return ""
	}
	return parents[0]
}

func etag(s *string) string {
	return strings.Trim(aws.ToString(s), `"`)
}

func quote(revision string) string {
	return `"` + strings.Trim(revision, `"`) + `"`
}

func (s *S3Store) EnsureFolder(ctx context.Context, parentID, name string) (string, error) {
	id := joinKey(parentID, Sanitize(name)) + "/"

	_, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: aws.String(id)})
	if err == nil {
		return id, nil
	}
	if err = mapError(err); !errors.Is(err, common.ErrNotFound) {
		return "", fmt.Errorf("failed to look up folder %s: %w", id, err)
	}

	_, err = s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(id),
		Body:        bytes.NewReader(nil),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		// a concurrent creator made it first
		if errors.Is(mapError(err), common.ErrVersionConflict) {
			return id, nil
		}
		return "", fmt.Errorf("failed to create folder %s: %w", id, mapError(err))
	}
	return id, nil
}

// UploadResumable streams the local file to the store. A retried upload
// restarts the object from the beginning.
func (s *S3Store) UploadResumable(ctx context.Context, req UploadRequest) (*File, error) {
	f, err := os.Open(req.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", req.LocalPath, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}

	key := joinKey(firstParent(req.Parents), req.Name)
	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           aws.String(key),
		Body:          f,
		ContentType:   aws.String(req.MimeType),
		ContentLength: aws.Int64(st.Size()),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", key, mapError(err))
	}

	return s.describe(ctx, key, req.MimeType, st.Size(), etag(out.ETag))
}

func (s *S3Store) DownloadFile(ctx context.Context, fileID, destPath string) error {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(fileID)})
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", fileID, mapError(err))
	}
	defer out.Body.Close()

	dst, err := os.Create(destPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, out.Body); err != nil {
		_ = dst.Close()
		return fmt.Errorf("failed to download %s: %w", fileID, mapError(err))
	}
	return dst.Close()
}

func (s *S3Store) DownloadJSON(ctx context.Context, fileID string) ([]byte, error) {
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{Bucket: &s.bucket, Key: aws.String(fileID)})
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", fileID, mapError(err))
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fileID, mapError(err))
	}
	return data, nil
}

func (s *S3Store) GetFileMetadata(ctx context.Context, fileID string) (*File, error) {
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{Bucket: &s.bucket, Key: aws.String(fileID)})
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", fileID, mapError(err))
	}
	return s.describe(ctx, fileID, aws.ToString(out.ContentType), aws.ToInt64(out.ContentLength), etag(out.ETag))
}

func (s *S3Store) FindFile(ctx context.Context, parentID, name string) (*File, error) {
	return s.GetFileMetadata(ctx, joinKey(parentID, name))
}

func (s *S3Store) CreateFile(ctx context.Context, req CreateRequest) (*File, error) {
	key := joinKey(firstParent(req.Parents), req.Name)
	out, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(key),
		Body:        bytes.NewReader(req.Content),
		ContentType: aws.String(req.MimeType),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", key, mapError(err))
	}
	return s.describe(ctx, key, req.MimeType, int64(len(req.Content)), etag(out.ETag))
}

func (s *S3Store) UpdateFile(ctx context.Context, fileID string, content []byte, mimeType, expectRevision string) (*File, error) {
	in := &s3.PutObjectInput{
		Bucket:      &s.bucket,
		Key:         aws.String(fileID),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(mimeType),
	}
	if expectRevision != "" {
		in.IfMatch = aws.String(quote(expectRevision))
	}

	out, err := s.api.PutObject(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("failed to update %s: %w", fileID, mapError(err))
	}
	return s.describe(ctx, fileID, mimeType, int64(len(content)), etag(out.ETag))
}

func (s *S3Store) IsOnline(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, s.pingTTL)
	defer cancel()

	_, err := s.api.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: &s.bucket})
	return err == nil
}

func (s *S3Store) describe(ctx context.Context, key, mimeType string, size int64, revision string) (*File, error) {
	req, err := s.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.linkExpiry))
	if err != nil {
		return nil, fmt.Errorf("failed to presign %s: %w", key, err)
	}

	return &File{
		ID:       key,
		Name:     nameOf(key),
		MimeType: mimeType,
		Size:     size,
		Revision: revision,
		WebLink:  req.URL,
		Parents:  []string{parentOf(key)},
	}, nil
}

// mapError translates SDK failures into the common sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket":
			return fmt.Errorf("%w: %s", common.ErrNotFound, apiErr.ErrorMessage())
		case "PreconditionFailed", "ConditionalRequestConflict":
			return fmt.Errorf("%w: %s", common.ErrVersionConflict, apiErr.ErrorMessage())
		case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
			return fmt.Errorf("%w: %s", common.ErrUnauthorized, apiErr.ErrorMessage())
		case "SlowDown", "ServiceUnavailable", "InternalError", "RequestTimeout":
			return fmt.Errorf("%w: %s", common.ErrUnavailable, apiErr.ErrorMessage())
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return fmt.Errorf("%w: %v", common.ErrUnavailable, err)
	}
	return err
}
