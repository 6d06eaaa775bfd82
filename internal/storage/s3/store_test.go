package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/askmesh/askmesh/internal/storage"
)

func TestPutJoinsPrefixAndDetectsContentType(t *testing.T) {
	cases := []struct {
		prefix      string
		key         string
		wantKey     string
		contentType string
		wantType    string
	}{
		{prefix: "/askmesh/prod/", key: "/cache/query_cache.json", wantKey: "askmesh/prod/cache/query_cache.json", wantType: "application/json"},
		{prefix: "", key: "askmesh/history/turns.parquet", wantKey: "askmesh/history/turns.parquet", wantType: "application/vnd.apache.parquet"},
		{prefix: "x", key: "notes.txt", wantKey: "x/notes.txt", wantType: "application/octet-stream"},
		{prefix: "", key: "a.json", contentType: "text/plain", wantKey: "a.json", wantType: "text/plain"},
	}
	for _, tc := range cases {
		api := &fakeAPI{}
		store, err := newStore(api, "bucket-a", tc.prefix)
		if err != nil {
			t.Fatalf("newStore() error = %v", err)
		}
		info, err := store.Put(context.Background(), tc.key, bytes.NewBufferString("PAR1"), 4, storage.PutOptions{ContentType: tc.contentType})
		if err != nil {
			t.Fatalf("Put(%q) error = %v", tc.key, err)
		}
		if api.bucket != "bucket-a" || api.key != tc.wantKey || api.contentType != tc.wantType {
			t.Fatalf("Put(%q) sent bucket=%q key=%q type=%q", tc.key, api.bucket, api.key, api.contentType)
		}
		if info.Size != 4 {
			t.Fatalf("Size = %d", info.Size)
		}
	}
}

func TestPutRejectsPathTraversal(t *testing.T) {
	api := &fakeAPI{}
	store, _ := newStore(api, "bucket-a", "")
	if _, err := store.Put(context.Background(), "../secrets.txt", bytes.NewBufferString("x"), 1, storage.PutOptions{}); err == nil {
		t.Fatal("expected key validation error")
	}
	if api.key != "" {
		t.Fatalf("object API called with %q", api.key)
	}
}

func TestPutWrapsUploadError(t *testing.T) {
	store, _ := newStore(&fakeAPI{putErr: errors.New("slow down")}, "bucket-a", "")
	_, err := store.Put(context.Background(), "cache/query_cache.json", bytes.NewBufferString("{}"), 2, storage.PutOptions{})
	if err == nil || !strings.Contains(err.Error(), "s3://bucket-a/cache/query_cache.json") {
		t.Fatalf("Put() error = %v", err)
	}
}

func TestGetMapsMissingObject(t *testing.T) {
	store, _ := newStore(&fakeAPI{getErr: storage.ErrObjectNotFound}, "bucket-a", "")
	if _, err := store.Get(context.Background(), "cache/query_cache.json"); !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Get() error = %v, want ErrObjectNotFound", err)
	}
}

func TestGetReturnsBody(t *testing.T) {
	store, _ := newStore(&fakeAPI{}, "bucket-a", "root")
	body, err := store.Get(context.Background(), "cache/query_cache.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	raw, _ := io.ReadAll(body)
	if string(raw) != "root/cache/query_cache.json" {
		t.Fatalf("body = %q", raw)
	}
}

func TestNewStoreRequiresBucket(t *testing.T) {
	if _, err := newStore(&fakeAPI{}, "  ", ""); err == nil {
		t.Fatal("expected error")
	}
}

func TestConfigHost(t *testing.T) {
	cases := []struct {
		endpoint   string
		useSSL     bool
		wantHost   string
		wantSecure bool
		wantErr    bool
	}{
		{endpoint: "https://minio.example.com", wantHost: "minio.example.com", wantSecure: true},
		{endpoint: "http://minio:9000", useSSL: true, wantHost: "minio:9000"},
		{endpoint: "localhost:9000", wantHost: "localhost:9000"},
		{endpoint: "localhost:9000", useSSL: true, wantHost: "localhost:9000", wantSecure: true},
		{endpoint: "", wantErr: true},
		{endpoint: "ftp://minio", wantErr: true},
		{endpoint: "https://", wantErr: true},
	}
	for _, tc := range cases {
		host, secure, err := Config{Endpoint: tc.endpoint, UseSSL: tc.useSSL}.host()
		if tc.wantErr {
			if err == nil {
				t.Fatalf("host(%q) expected error", tc.endpoint)
			}
			continue
		}
		if err != nil || host != tc.wantHost || secure != tc.wantSecure {
			t.Fatalf("host(%q) = %q, %v, %v", tc.endpoint, host, secure, err)
		}
	}
}

type fakeAPI struct {
	bucket      string
	key         string
	contentType string
	putErr      error
	getErr      error
}

func (f *fakeAPI) PutObject(_ context.Context, bucket, key string, body io.Reader, size int64, contentType string) (storage.ObjectInfo, error) {
	if f.putErr != nil {
		return storage.ObjectInfo{}, f.putErr
	}
	f.bucket, f.key, f.contentType = bucket, key, contentType
	_, _ = io.Copy(io.Discard, body)
	return storage.ObjectInfo{Key: key, Size: size, ETag: "etag-1"}, nil
}

func (f *fakeAPI) GetObject(_ context.Context, _, key string) (io.ReadCloser, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return io.NopCloser(strings.NewReader(key)), nil
}

func (f *fakeAPI) EnsureBucket(context.Context, string, string) error {
	return nil
}
