package gateway

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/require"

	"github.com/matsuo0603/ShareFileBC/config"
	"github.com/matsuo0603/ShareFileBC/model"
)

// fakeS3 simulates an S3 bucket in memory
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	tags    map[string]string
	puts    int
	failAll error // when set, every call fails with this error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{
		objects: make(map[string][]byte),
		tags:    make(map[string]string),
	}
}

func (m *fakeS3) sortedKeys(prefix string) []string {
	keys := []string{}
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

func (m *fakeS3) ListObjectsV2(ctx context.Context, input *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}

	out := &s3.ListObjectsV2Output{}
	prefix := aws.ToString(input.Prefix)
	delimiter := aws.ToString(input.Delimiter)
	seen := map[string]bool{}

	for _, k := range m.sortedKeys(prefix) {
		rest := k[len(prefix):]
		if delimiter != "" {
			if idx := strings.Index(rest, delimiter); idx >= 0 {
				cp := prefix + rest[:idx+1]
				if !seen[cp] {
					seen[cp] = true
					out.CommonPrefixes = append(out.CommonPrefixes, types.CommonPrefix{Prefix: aws.String(cp)})
				}
				continue
			}
		}
		size := int64(len(m.objects[k]))
		now := time.Now()
		out.Contents = append(out.Contents, types.Object{
			Key:          aws.String(k),
			Size:         aws.Int64(size),
			ETag:         aws.String("etag"),
			LastModified: &now,
		})
	}
	return out, nil
}

func (m *fakeS3) GetObject(ctx context.Context, input *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	data, ok := m.objects[aws.ToString(input.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (m *fakeS3) PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	data, err := io.ReadAll(input.Body)
	if err != nil {
		return nil, err
	}
	m.objects[aws.ToString(input.Key)] = data
	m.puts++
	return &s3.PutObjectOutput{}, nil
}

func (m *fakeS3) HeadObject(ctx context.Context, input *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	data, ok := m.objects[aws.ToString(input.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	now := time.Now()
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		LastModified:  &now,
	}, nil
}

func (m *fakeS3) DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	delete(m.objects, aws.ToString(input.Key))
	return &s3.DeleteObjectOutput{}, nil
}

func (m *fakeS3) PutObjectTagging(ctx context.Context, input *s3.PutObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.PutObjectTaggingOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failAll != nil {
		return nil, m.failAll
	}
	for _, tag := range input.Tagging.TagSet {
		m.tags[aws.ToString(input.Key)+"#"+aws.ToString(tag.Key)] = aws.ToString(tag.Value)
	}
	return &s3.PutObjectTaggingOutput{}, nil
}

func newTestS3Gateway(fake *fakeS3) *S3Gateway {
	return &S3Gateway{
		client:      fake,
		config:      &config.S3Config{Bucket: "test-bucket"},
		common:      &config.CommonGatewayConfig{TimeoutSeconds: 5, MaxRetries: 1},
		lastRPSTime: time.Now(),
	}
}

func TestS3EnsureFolder_CreatesMarkerOnce(t *testing.T) {
	fake := newFakeS3()
	g := newTestS3Gateway(fake)
	ctx := context.Background()

	id, err := g.EnsureFolder(ctx, "ShareFileBCApp", g.RootID())
	require.NoError(t, err)
	require.Equal(t, "ShareFileBCApp/", id)
	require.Contains(t, fake.objects, "ShareFileBCApp/")
	require.Equal(t, 1, fake.puts)

	// Second call finds the marker and does not recreate it
	again, err := g.EnsureFolder(ctx, "ShareFileBCApp", g.RootID())
	require.NoError(t, err)
	require.Equal(t, id, again)
	require.Equal(t, 1, fake.puts)
}

func TestS3EnsureFolder_NestedChain(t *testing.T) {
	fake := newFakeS3()
	g := newTestS3Gateway(fake)
	ctx := context.Background()

	root, err := g.EnsureFolder(ctx, "ShareFileBCApp", g.RootID())
	require.NoError(t, err)
	recipient, err := g.EnsureFolder(ctx, "Alice", root)
	require.NoError(t, err)
	date, err := g.EnsureFolder(ctx, "2025-06-25", recipient)
	require.NoError(t, err)

	require.Equal(t, "ShareFileBCApp/Alice/2025-06-25/", date)
}

func TestS3CreateFileAndOpenFile(t *testing.T) {
	fake := newFakeS3()
	g := newTestS3Gateway(fake)
	ctx := context.Background()

	id, err := g.CreateFile(ctx, "report.pdf", "ShareFileBCApp/Alice/2025-06-25/", strings.NewReader("hello"))
	require.NoError(t, err)
	require.Equal(t, "ShareFileBCApp/Alice/2025-06-25/report.pdf", id)

	rc, err := g.OpenFile(ctx, id)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))

	_, err = g.OpenFile(ctx, "missing.bin")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestS3ListChildren(t *testing.T) {
	fake := newFakeS3()
	fake.objects["app/Alice/"] = nil
	fake.objects["app/Alice/2025-06-25/"] = nil
	fake.objects["app/Alice/2025-06-25/a.txt"] = []byte("a")
	fake.objects["app/Alice/note.txt"] = []byte("note")
	g := newTestS3Gateway(fake)

	children, err := g.ListChildren(context.Background(), "app/Alice/")
	require.NoError(t, err)

	var names []string
	byName := map[string]model.FileInfo{}
	for _, c := range children {
		names = append(names, c.Name)
		byName[c.Name] = c
	}
	require.ElementsMatch(t, []string{"2025-06-25", "note.txt"}, names, "marker and grandchildren must not appear")
	require.True(t, byName["2025-06-25"].IsFolder)
	require.False(t, byName["note.txt"].IsFolder)
	require.Equal(t, "app/Alice/2025-06-25/", byName["2025-06-25"].ID)
}

func TestS3Stat(t *testing.T) {
	fake := newFakeS3()
	fake.objects["app/Alice/2025-06-25/"] = nil
	fake.objects["app/Alice/2025-06-25/a.txt"] = []byte("abc")
	g := newTestS3Gateway(fake)
	ctx := context.Background()

	folder, err := g.Stat(ctx, "app/Alice/2025-06-25/")
	require.NoError(t, err)
	require.True(t, folder.IsFolder)
	require.Equal(t, "2025-06-25", folder.Name)
	require.Equal(t, "app/Alice/", folder.ParentID)

	file, err := g.Stat(ctx, "app/Alice/2025-06-25/a.txt")
	require.NoError(t, err)
	require.False(t, file.IsFolder)
	require.Equal(t, int64(3), file.Size)

	_, err = g.Stat(ctx, "app/nope/")
	require.ErrorIs(t, err, ErrNotFound)

	root, err := g.Stat(ctx, g.RootID())
	require.NoError(t, err)
	require.True(t, root.IsFolder)
}

func TestS3Delete_FolderRemovesSubtree(t *testing.T) {
	fake := newFakeS3()
	fake.objects["app/Alice/2025-06-25/"] = nil
	fake.objects["app/Alice/2025-06-25/a.txt"] = []byte("a")
	fake.objects["app/Alice/2025-06-25/b.txt"] = []byte("b")
	fake.objects["app/Alice/keep.txt"] = []byte("keep")
	g := newTestS3Gateway(fake)

	require.NoError(t, g.Delete(context.Background(), "app/Alice/2025-06-25/"))

	require.NotContains(t, fake.objects, "app/Alice/2025-06-25/")
	require.NotContains(t, fake.objects, "app/Alice/2025-06-25/a.txt")
	require.NotContains(t, fake.objects, "app/Alice/2025-06-25/b.txt")
	require.Contains(t, fake.objects, "app/Alice/keep.txt")
}

func TestS3Delete_MissingObjectIsNotAnError(t *testing.T) {
	g := newTestS3Gateway(newFakeS3())
	require.NoError(t, g.Delete(context.Background(), "app/Alice/gone.txt"))
}

func TestS3GrantRead(t *testing.T) {
	fake := newFakeS3()
	fake.objects["app/Alice/2025-06-25/a.txt"] = []byte("a")
	g := newTestS3Gateway(fake)

	require.NoError(t, g.GrantRead(context.Background(), "app/Alice/2025-06-25/a.txt", "alice@example.com"))
	require.Equal(t, "alice@example.com", fake.tags["app/Alice/2025-06-25/a.txt#shared-with"])
}

func TestS3RetriesExhausted_ReportsUnavailable(t *testing.T) {
	fake := newFakeS3()
	fake.failAll = errors.New("connection refused")
	g := newTestS3Gateway(fake)
	g.common.MaxRetries = 2

	_, err := g.ListChildren(context.Background(), "app/")
	require.ErrorIs(t, err, ErrUnavailable)
}
