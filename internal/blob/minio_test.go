package blob

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"

	"ideashare/api/internal/util"
)

func getenvDefault(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

// openTestMinio connects to the server named by IDEAS_TEST_MINIO_ENDPOINT
// and creates a throwaway bucket that is removed when the test ends.
func openTestMinio(t *testing.T) *MinioStore {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping minio integration test in short mode")
	}
	endpoint := strings.TrimSpace(os.Getenv("IDEAS_TEST_MINIO_ENDPOINT"))
	if endpoint == "" {
		t.Skip("IDEAS_TEST_MINIO_ENDPOINT is not set")
	}

	s, err := NewMinioStore(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: getenvDefault("IDEAS_TEST_MINIO_ACCESS_KEY", "minioadmin"),
		SecretKey: getenvDefault("IDEAS_TEST_MINIO_SECRET_KEY", "minioadmin"),
		Bucket:    "ideas-test-" + util.NewID("")[:8],
		Region:    "us-east-1",
		URLTTL:    time.Minute,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("NewMinioStore() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("EnsureBucket() error = %v", err)
	}
	if err := s.EnsureBucket(ctx); err != nil {
		t.Fatalf("second EnsureBucket() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for object := range s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{Recursive: true}) {
			if object.Err == nil {
				_ = s.client.RemoveObject(ctx, s.bucket, object.Key, minio.RemoveObjectOptions{})
			}
		}
		_ = s.client.RemoveBucket(ctx, s.bucket)
	})
	return s
}

func TestMinioStorePutURLRemove(t *testing.T) {
	s := openTestMinio(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.Ping(ctx); err != nil {
		t.Fatalf("Ping() error = %v", err)
	}

	ref, err := s.Put(ctx, Object{OwnerID: "alice", Filename: "take.mp3", ContentType: "audio/mpeg", Size: 4, Body: strings.NewReader("riff")})
	if err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if !strings.HasPrefix(ref, "public/alice/") || !strings.HasSuffix(ref, "_take.mp3") {
		t.Fatalf("Put() ref = %q", ref)
	}
	info, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{})
	if err != nil {
		t.Fatalf("StatObject() error = %v", err)
	}
	if info.Size != 4 || info.ContentType != "audio/mpeg" {
		t.Fatalf("stored object = size %d type %q", info.Size, info.ContentType)
	}

	signed, err := s.URLFor(ctx, ref)
	if err != nil {
		t.Fatalf("URLFor() error = %v", err)
	}
	resp, err := http.Get(signed)
	if err != nil {
		t.Fatalf("GET presigned url: %v", err)
	}
	data, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(data) != "riff" {
		t.Fatalf("presigned GET = %d %q", resp.StatusCode, data)
	}

	second, err := s.Put(ctx, Object{OwnerID: "alice", Filename: "take.mp3", ContentType: "audio/mpeg", Body: strings.NewReader("two")})
	if err != nil {
		t.Fatalf("second Put() error = %v", err)
	}
	if second == ref {
		t.Fatalf("second upload reused ref %q", ref)
	}

	if err := s.Remove(ctx, second); err != nil {
		t.Fatalf("Remove() error = %v", err)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, second, minio.StatObjectOptions{}); minio.ToErrorResponse(err).Code != "NoSuchKey" {
		t.Fatalf("StatObject() after Remove error = %v, want NoSuchKey", err)
	}
	if _, err := s.client.StatObject(ctx, s.bucket, ref, minio.StatObjectOptions{}); err != nil {
		t.Fatalf("first upload lost after removing the second: %v", err)
	}
	if err := s.Remove(ctx, second); err != nil {
		t.Fatalf("Remove() of missing object error = %v", err)
	}
}
