package s3_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"exchangeflow/config"
	flows3 "exchangeflow/pkg/storage/s3"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

type fakeS3 struct {
	objects map[string][]byte
	fail    string
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.fail {
		return nil, errors.New("access denied")
	}
	body, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[key] = body
	return &s3.PutObjectOutput{}, nil
}

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(name), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
}

// go test -v --run TestUploadDir
func TestUploadDir(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "exchange_summary.csv", "exchange_volume_share.png", "app.log")
	if err := os.Mkdir(filepath.Join(dir, "nested.csv"), 0755); err != nil {
		t.Fatal(err)
	}

	fake := &fakeS3{objects: map[string][]byte{}}
	up := flows3.NewUploaderWithClient(fake, config.S3Config{Bucket: "b", Prefix: "/flows/"}, nil)

	keys, err := up.UploadDir(context.Background(), dir, "run-1")
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	want := []string{"flows/run-1/exchange_summary.csv", "flows/run-1/exchange_volume_share.png"}
	if len(keys) != len(want) {
		t.Fatalf("expected %v, got %v", want, keys)
	}
	for i, k := range want {
		if keys[i] != k {
			t.Errorf("key %d: expected %s, got %s", i, k, keys[i])
		}
	}
	if string(fake.objects["flows/run-1/exchange_summary.csv"]) != "exchange_summary.csv" {
		t.Errorf("unexpected body: %q", fake.objects["flows/run-1/exchange_summary.csv"])
	}
}

// go test -v --run TestUploadDirFailure
func TestUploadDirFailure(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "a.csv", "b.csv")

	fake := &fakeS3{objects: map[string][]byte{}, fail: "run-2/b.csv"}
	up := flows3.NewUploaderWithClient(fake, config.S3Config{Bucket: "b"}, nil)

	keys, err := up.UploadDir(context.Background(), dir, "run-2")
	if err == nil {
		t.Fatal("expected upload error")
	}
	if len(keys) != 1 || keys[0] != "run-2/a.csv" {
		t.Errorf("expected the first key before failure, got %v", keys)
	}
}

// go test -v --run TestUploadFiles
func TestUploadFiles(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "exchange_summary.csv", "daily_exchange_flows.csv", "exchange_volume_share.png")

	fake := &fakeS3{objects: map[string][]byte{}}
	up := flows3.NewUploaderWithClient(fake, config.S3Config{Bucket: "b", Prefix: "flows"}, nil)

	files := []string{filepath.Join(dir, "exchange_summary.csv"), filepath.Join(dir, "daily_exchange_flows.csv")}
	keys, err := up.UploadFiles(context.Background(), "run-3", files)
	if err != nil {
		t.Fatalf("upload failed: %v", err)
	}

	if len(keys) != 2 || keys[0] != "flows/run-3/exchange_summary.csv" || keys[1] != "flows/run-3/daily_exchange_flows.csv" {
		t.Errorf("unexpected keys: %v", keys)
	}
	if _, ok := fake.objects["flows/run-3/exchange_volume_share.png"]; ok {
		t.Error("file outside the list was uploaded")
	}
}
