package storage

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewS3Storage(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "framecast_s3_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	cfg := S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566", // LocalStack-like endpoint
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	}

	storage, err := NewS3Storage(tempDir, cfg)
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	if storage.client == nil {
		t.Error("client is nil")
	}
	if storage.TempDir() != tempDir {
		t.Errorf("TempDir() = %v, want %v", storage.TempDir(), tempDir)
	}
}

func TestS3Storage_InheritsLocalStorage(t *testing.T) {
	tempDir := filepath.Join(os.TempDir(), "framecast_s3_test_"+randomSuffix())
	defer os.RemoveAll(tempDir)

	storage, err := NewS3Storage(tempDir, S3Config{
		Region:          "us-east-1",
		Endpoint:        "http://localhost:4566",
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}

	ctx := context.Background()

	scope, err := storage.CreateScope(ctx, "run-s3")
	if err != nil {
		t.Fatalf("CreateScope() error = %v", err)
	}

	if err := storage.ReleaseScope(ctx, scope, nil); err != nil {
		t.Fatalf("ReleaseScope() error = %v", err)
	}
	if _, err := os.Stat(scope.Dir); !os.IsNotExist(err) {
		t.Errorf("scope %s still exists", scope.Dir)
	}
}

func newMockS3Storage(t *testing.T, handler http.HandlerFunc) (*S3Storage, string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	tempDir := filepath.Join(os.TempDir(), "framecast_s3_mock_test_"+randomSuffix())
	t.Cleanup(func() { _ = os.RemoveAll(tempDir) })

	storage, err := NewS3Storage(tempDir, S3Config{
		Region:          "us-east-1",
		Endpoint:        server.URL,
		AccessKeyID:     "test-access-key",
		SecretAccessKey: "test-secret-key",
	})
	if err != nil {
		t.Fatalf("NewS3Storage() error = %v", err)
	}
	return storage, tempDir
}

func TestS3Storage_FetchObject_MockServer(t *testing.T) {
	storage, tempDir := newMockS3Storage(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET method, got %s", r.Method)
		}

		if !strings.HasSuffix(r.URL.Path, "/videos/game.mp4") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}

		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("video bytes"))
	})

	dst := filepath.Join(tempDir, "source.mp4")
	if err := storage.FetchObject(context.Background(), "test-bucket", "videos/game.mp4", dst); err != nil {
		t.Fatalf("FetchObject() error = %v", err)
	}

	content, err := os.ReadFile(dst)
	if err != nil {
		t.Fatalf("failed to read: %v", err)
	}
	if string(content) != "video bytes" {
		t.Errorf("got %q, want %q", string(content), "video bytes")
	}
}

func TestS3Storage_FetchObject_NotFound(t *testing.T) {
	storage, tempDir := newMockS3Storage(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/xml")
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>not found</Message></Error>`))
	})

	dst := filepath.Join(tempDir, "missing.mp4")
	err := storage.FetchObject(context.Background(), "test-bucket", "missing.mp4", dst)
	if err == nil {
		t.Fatal("expected error for missing object")
	}

	if _, statErr := os.Stat(dst); !os.IsNotExist(statErr) {
		t.Errorf("destination should not exist after failure")
	}
}
