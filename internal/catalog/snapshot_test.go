package catalog

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleGames() []GameDTO {
	return []GameDTO{
		{ID: 1, Name: "Hades", Genre: []string{"Roguelike"}, Reviews: []ReviewDTO{{Text: "great", Positive: true}}},
		{ID: 2, Name: "Anthem", Genre: []string{"Shooter"}, Reviews: []ReviewDTO{{Text: "empty", Positive: false}}},
	}
}

func TestFileSnapshot(t *testing.T) {
	ctx := context.Background()
	snap := NewFileSnapshot(filepath.Join(t.TempDir(), "cache", "games.json"))

	_, err := snap.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, snap.Save(ctx, sampleGames()))
	got, err := snap.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleGames(), got)

	entries, err := os.ReadDir(filepath.Dir(snap.Path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestFileSnapshotCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.json")
	require.NoError(t, os.WriteFile(path, []byte("{truncated"), 0o644))

	_, err := NewFileSnapshot(path).Load(context.Background())
	var corrupt *CorruptCacheError
	require.ErrorAs(t, err, &corrupt)
	assert.Equal(t, path, corrupt.Source)
}

type fakeS3 struct {
	objects map[string][]byte
	puts    []*s3.PutObjectInput
}

func (f *fakeS3) GetObject(ctx context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	data, ok := f.objects[*in.Bucket+"/"+*in.Key]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(ctx context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[*in.Bucket+"/"+*in.Key] = data
	f.puts = append(f.puts, in)
	return &s3.PutObjectOutput{}, nil
}

func TestS3Snapshot(t *testing.T) {
	ctx := context.Background()
	fake := &fakeS3{objects: map[string][]byte{}}
	snap := NewS3Snapshot(fake, "review-rush", "catalog/games.json")

	_, err := snap.Load(ctx)
	assert.ErrorIs(t, err, ErrNoSnapshot)

	require.NoError(t, snap.Save(ctx, sampleGames()))
	require.Len(t, fake.puts, 1)
	assert.Equal(t, "application/json", *fake.puts[0].ContentType)

	got, err := snap.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, sampleGames(), got)

	fake.objects["review-rush/catalog/games.json"] = []byte("nope")
	_, err = snap.Load(ctx)
	var corrupt *CorruptCacheError
	assert.ErrorAs(t, err, &corrupt)
}
