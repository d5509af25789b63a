package filestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/dmitrijs2005/refkeeper/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	body        []byte
	etag        string
	contentType string
}

// fakeS3 keeps objects in memory and honours If-Match / If-None-Match.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
	seq     int
	down    bool
	puts    int
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string]object{}}
}

var errNetDown = &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errNetDown
	}
	key := aws.ToString(in.Key)
	cur, exists := f.objects[key]
	if aws.ToString(in.IfNoneMatch) == "*" && exists {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "exists"}
	}
	if in.IfMatch != nil && (!exists || *in.IfMatch != cur.etag) {
		return nil, &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "etag mismatch"}
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.seq++
	f.puts++
	tag := fmt.Sprintf(`"rev-%d"`, f.seq)
	f.objects[key] = object{body: body, etag: tag, contentType: aws.ToString(in.ContentType)}
	return &s3.PutObjectOutput{ETag: aws.String(tag)}, nil
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errNetDown
	}
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NoSuchKey", Message: "missing"}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(strings.NewReader(string(o.body))), ETag: aws.String(o.etag)}, nil
}

func (f *fakeS3) HeadObject(ctx context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, errNetDown
	}
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &smithy.GenericAPIError{Code: "NotFound", Message: "missing"}
	}
	return &s3.HeadObjectOutput{
		ETag:          aws.String(o.etag),
		ContentType:   aws.String(o.contentType),
		ContentLength: aws.Int64(int64(len(o.body))),
	}, nil
}

func (f *fakeS3) HeadBucket(ctx context.Context, in *s3.HeadBucketInput, _ ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
	if f.down {
		return nil, errNetDown
	}
	return &s3.HeadBucketOutput{}, nil
}

type fakePresigner struct{}

func (fakePresigner) PresignGetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://s3.local/" + aws.ToString(in.Bucket) + "/" + aws.ToString(in.Key)}, nil
}

func newTestStore() (*S3Store, *fakeS3) {
	f := newFakeS3()
	return newS3Store(f, fakePresigner{}, "refs", time.Hour), f
}

func TestS3Store_EnsureFolder_Idempotent(t *testing.T) {
	st, f := newTestStore()
	ctx := context.Background()

	root, err := st.EnsureFolder(ctx, "", "lib 1")
	require.NoError(t, err)
	assert.Equal(t, "lib_1/", root)

	pdfs, err := st.EnsureFolder(ctx, root, PDFFolder)
	require.NoError(t, err)
	assert.Equal(t, "lib_1/pdfs/", pdfs)

	again, err := st.EnsureFolder(ctx, root, PDFFolder)
	require.NoError(t, err)
	assert.Equal(t, pdfs, again)
	assert.Equal(t, 2, f.puts)
}

func TestS3Store_UploadAndDownload(t *testing.T) {
	st, _ := newTestStore()
	ctx := context.Background()

	src := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(src, []byte("%PDF-1.4 body"), 0o600))

	f, err := st.UploadResumable(ctx, UploadRequest{Name: "abcd1234_paper.pdf", MimeType: common.MimePDF, Parents: []string{"lib/pdfs/"}, LocalPath: src})
	require.NoError(t, err)
	assert.Equal(t, "lib/pdfs/abcd1234_paper.pdf", f.ID)
	assert.Equal(t, "abcd1234_paper.pdf", f.Name)
	assert.Equal(t, []string{"lib/pdfs/"}, f.Parents)
	assert.Equal(t, int64(13), f.Size)
	assert.Equal(t, "rev-1", f.Revision)
	assert.Equal(t, "https://s3.local/refs/lib/pdfs/abcd1234_paper.pdf", f.WebLink)

	dest := filepath.Join(t.TempDir(), "out.pdf")
	require.NoError(t, st.DownloadFile(ctx, f.ID, dest))
	got, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4 body", string(got))

	meta, err := st.GetFileMetadata(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "rev-1", meta.Revision)
	assert.Equal(t, common.MimePDF, meta.MimeType)
}

func TestS3Store_CreateFindUpdate(t *testing.T) {
	st, _ := newTestStore()
	ctx := context.Background()

	created, err := st.CreateFile(ctx, CreateRequest{Name: "a1.json", MimeType: common.MimeJSON, Parents: []string{"lib/annotations/"}, Content: []byte(`{"v":1}`)})
	require.NoError(t, err)

	_, err = st.CreateFile(ctx, CreateRequest{Name: "a1.json", Parents: []string{"lib/annotations/"}, Content: []byte(`{}`)})
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	found, err := st.FindFile(ctx, "lib/annotations/", "a1.json")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, created.Revision, found.Revision)

	updated, err := st.UpdateFile(ctx, created.ID, []byte(`{"v":2}`), common.MimeJSON, created.Revision)
	require.NoError(t, err)
	assert.NotEqual(t, created.Revision, updated.Revision)

	// the revision moved on; a writer holding the old one loses
	_, err = st.UpdateFile(ctx, created.ID, []byte(`{"v":3}`), common.MimeJSON, created.Revision)
	assert.ErrorIs(t, err, common.ErrVersionConflict)

	data, err := st.DownloadJSON(ctx, created.ID)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(data))
}

func TestS3Store_ErrorMapping(t *testing.T) {
	st, f := newTestStore()
	ctx := context.Background()

	_, err := st.GetFileMetadata(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	_, err = st.DownloadJSON(ctx, "nope")
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.True(t, st.IsOnline(ctx))
	f.down = true
	assert.False(t, st.IsOnline(ctx))

	_, err = st.CreateFile(ctx, CreateRequest{Name: "x.json", Content: []byte("{}")})
	assert.ErrorIs(t, err, common.ErrUnavailable)

	_, err = st.EnsureFolder(ctx, "", "lib")
	assert.ErrorIs(t, err, common.ErrUnavailable)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		code string
		want error
	}{
		{"NoSuchKey", common.ErrNotFound},
		{"PreconditionFailed", common.ErrVersionConflict},
		{"ConditionalRequestConflict", common.ErrVersionConflict},
		{"AccessDenied", common.ErrUnauthorized},
		{"SlowDown", common.ErrUnavailable},
	}
	for _, tt := range tests {
		err := mapError(&smithy.GenericAPIError{Code: tt.code})
		assert.ErrorIs(t, err, tt.want, tt.code)
	}

	assert.ErrorIs(t, mapError(context.Canceled), context.Canceled)
	assert.Nil(t, mapError(nil))

	other := errors.New("boom")
	assert.Equal(t, other, mapError(other))
}

func TestNewS3Store_AppliesConfig(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	origNew := newS3ClientFromConfig
	t.Cleanup(func() {
		loadDefaultAWSConfig = origLoad
		newS3ClientFromConfig = origNew
	})

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		var lo awsconfig.LoadOptions
		for _, fn := range optFns {
			require.NoError(t, fn(&lo))
		}
		assert.Equal(t, "eu-central-1", lo.Region)
		require.NotNil(t, lo.Credentials)
		return aws.Config{}, nil
	}

	var opts s3.Options
	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		for _, fn := range optFns {
			fn(&opts)
		}
		return s3.New(s3.Options{Region: "eu-central-1"})
	}

	st, err := NewS3Store(context.Background(), S3Config{Endpoint: "http://127.0.0.1:9000", Region: "eu-central-1", Bucket: "refs", AccessKey: "k", SecretKey: "s"})
	require.NoError(t, err)
	assert.Equal(t, "refs", st.bucket)
	require.NotNil(t, opts.BaseEndpoint)
	assert.Equal(t, "http://127.0.0.1:9000", *opts.BaseEndpoint)
	assert.True(t, opts.UsePathStyle)
}

func TestNewS3Store_LoadError(t *testing.T) {
	origLoad := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = origLoad })

	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err := NewS3Store(context.Background(), S3Config{})
	assert.Error(t, err)
}
