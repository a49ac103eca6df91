package storage

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
)

type fakeUploader struct {
	objects map[string]string
	types   map[string]string
}

func (f *fakeUploader) Upload(_ context.Context, input *s3.PutObjectInput, _ ...func(*manager.Uploader)) (*manager.UploadOutput, error) {
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(input.Key)] = string(data)
	f.types[aws.ToString(input.Key)] = aws.ToString(input.ContentType)
	return &manager.UploadOutput{}, nil
}

type fakeObjects struct {
	keys    []string
	deleted []string
	calls   int
}

func (f *fakeObjects) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	prefix := aws.ToString(in.Prefix)
	var contents []s3types.Object
	for _, key := range f.keys {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			contents = append(contents, s3types.Object{Key: aws.String(key)})
		}
	}
	return &s3.ListObjectsV2Output{Contents: contents, IsTruncated: aws.Bool(false)}, nil
}

func (f *fakeObjects) DeleteObjects(_ context.Context, in *s3.DeleteObjectsInput, _ ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	f.calls++
	for _, obj := range in.Delete.Objects {
		f.deleted = append(f.deleted, aws.ToString(obj.Key))
	}
	return &s3.DeleteObjectsOutput{}, nil
}

func TestS3MirrorUploadDirSkipsHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"index.m3u8":          "#EXTM3U",
		"000.ts":              "seg0",
		"001.ts":              "seg1",
		".index.m3u8.partial": "half",
		".lock":               "",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}

	up := &fakeUploader{objects: map[string]string{}, types: map[string]string{}}
	mirror := newS3Mirror(up, &fakeObjects{}, "bucket")

	if err := mirror.UploadDir(context.Background(), dir, "/4/720p/"); err != nil {
		t.Fatalf("upload dir: %v", err)
	}

	var keys []string
	for key := range up.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	want := []string{"4/720p/000.ts", "4/720p/001.ts", "4/720p/index.m3u8"}
	if len(keys) != len(want) {
		t.Fatalf("unexpected keys %v", keys)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Fatalf("unexpected keys %v", keys)
		}
	}
	if up.types["4/720p/index.m3u8"] != "application/vnd.apple.mpegurl" || up.types["4/720p/000.ts"] != "video/MP2T" {
		t.Fatalf("unexpected content types %v", up.types)
	}
}

func TestS3MirrorDeletePrefixBatches(t *testing.T) {
	objects := &fakeObjects{}
	for i := 0; i < deleteBatchSize+5; i++ {
		objects.keys = append(objects.keys, "4/480p/"+strconv.Itoa(i)+".ts")
	}
	objects.keys = append(objects.keys, "40/480p/000.ts")

	mirror := newS3Mirror(&fakeUploader{}, objects, "bucket")
	if err := mirror.DeletePrefix(context.Background(), "4/"); err != nil {
		t.Fatalf("delete prefix: %v", err)
	}
	if objects.calls != 2 {
		t.Fatalf("expected two delete batches, got %d", objects.calls)
	}
	if len(objects.deleted) != deleteBatchSize+5 {
		t.Fatalf("expected %d deletions, got %d", deleteBatchSize+5, len(objects.deleted))
	}
	for _, key := range objects.deleted {
		if key == "40/480p/000.ts" {
			t.Fatal("delete must not cross into another video's prefix")
		}
	}

	if err := mirror.DeletePrefix(context.Background(), "/"); err == nil {
		t.Fatal("expected empty prefix to be refused")
	}
}
