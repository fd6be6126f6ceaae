package assetstore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/dmitrijs2005/offlinesync/internal/client/models"
	"github.com/dmitrijs2005/offlinesync/internal/client/repositories/assets"
	"github.com/dmitrijs2005/offlinesync/internal/client/store"
	"github.com/dmitrijs2005/offlinesync/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type object struct {
	body        []byte
	contentType string
	meta        http.Header
}

// fakeS3 implements the path-style PUT/GET/HEAD object calls.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string]object
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.Method {
	case http.MethodPut:
		b, _ := io.ReadAll(r.Body)
		meta := http.Header{}
		for k, v := range r.Header {
			if strings.HasPrefix(strings.ToLower(k), "x-amz-meta-") {
				meta[k] = v
			}
		}
		f.objects[r.URL.Path] = object{body: b, contentType: r.Header.Get("Content-Type"), meta: meta}
		w.Header().Set("ETag", `"etag"`)
	case http.MethodGet, http.MethodHead:
		o, ok := f.objects[r.URL.Path]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			if r.Method == http.MethodGet {
				_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			}
			return
		}
		for k, v := range o.meta {
			w.Header()[k] = v
		}
		w.Header().Set("Content-Type", o.contentType)
		if r.Method == http.MethodGet {
			_, _ = w.Write(o.body)
		}
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newS3(t *testing.T) (*S3Store, *fakeS3) {
	t.Helper()
	fake := &fakeS3{objects: map[string]object{}}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	s, err := NewS3Store(context.Background(), S3Config{
		Bucket:       "assets",
		Region:       "us-east-1",
		BaseEndpoint: srv.URL,
		AccessKey:    "minioadmin",
		SecretKey:    "minioadmin",
	})
	require.NoError(t, err)
	return s, fake
}

func TestS3Store_PutGetHas(t *testing.T) {
	s, fake := newS3(t)
	ctx := context.Background()
	url := "https://app.test/img/a.png"
	fetched := time.UnixMilli(1700000000000).UTC()

	ok, err := s.Has(ctx, url)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Get(ctx, url)
	require.ErrorIs(t, err, common.ErrorNotFound)

	require.NoError(t, s.Put(ctx, &models.Asset{URL: url, ContentType: "image/png", Body: []byte("PNG"), FetchedAt: fetched}))

	_, stored := fake.objects["/assets/"+objectKey(url)]
	assert.True(t, stored, "path-style key under the bucket")

	ok, err = s.Has(ctx, url)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.Get(ctx, url)
	require.NoError(t, err)
	assert.Equal(t, "PNG", string(got.Body))
	assert.Equal(t, "image/png", got.ContentType)
	assert.True(t, fetched.Equal(got.FetchedAt))
}

func TestNewS3Store_Errors(t *testing.T) {
	_, err := NewS3Store(context.Background(), S3Config{})
	require.Error(t, err)

	orig := loadDefaultAWSConfig
	t.Cleanup(func() { loadDefaultAWSConfig = orig })
	loadDefaultAWSConfig = func(ctx context.Context, optFns ...func(*awsconfig.LoadOptions) error) (aws.Config, error) {
		return aws.Config{}, errors.New("no config")
	}
	_, err = NewS3Store(context.Background(), S3Config{Bucket: "b"})
	require.ErrorContains(t, err, "no config")
}

func TestOpen_SelectsKind(t *testing.T) {
	db, err := store.Open(context.Background(), ":memory:")
	require.NoError(t, err)
	defer db.Close()

	s, err := Open(context.Background(), "", db, S3Config{})
	require.NoError(t, err)
	assert.IsType(t, &assets.SQLiteRepository{}, s)

	_, err = Open(context.Background(), "ftp", db, S3Config{})
	require.Error(t, err)
}

func TestObjectKey_Stable(t *testing.T) {
	assert.Equal(t, objectKey("a"), objectKey("a"))
	assert.NotEqual(t, objectKey("a"), objectKey("b"))
	assert.True(t, strings.HasPrefix(objectKey("a"), "assets/"))
}
