package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrNoSnapshot is returned when nothing has been persisted yet.
var ErrNoSnapshot = errors.New("no catalog snapshot")

// CorruptCacheError reports a snapshot that exists but cannot be decoded.
type CorruptCacheError struct {
	Source string
	Err    error
}

func (e *CorruptCacheError) Error() string {
	return fmt.Sprintf("corrupt catalog snapshot %s: %v", e.Source, e.Err)
}

func (e *CorruptCacheError) Unwrap() error {
	return e.Err
}

// Snapshot persists the last successfully fetched full catalog.
type Snapshot interface {
	Load(ctx context.Context) ([]GameDTO, error)
	Save(ctx context.Context, games []GameDTO) error
}

func decodeSnapshot(source string, data []byte) ([]GameDTO, error) {
	var games []GameDTO
	if err := json.Unmarshal(data, &games); err != nil {
		return nil, &CorruptCacheError{Source: source, Err: err}
	}
	return games, nil
}

// FileSnapshot keeps the snapshot as a JSON file.
type FileSnapshot struct {
	Path string
}

func NewFileSnapshot(path string) *FileSnapshot {
	return &FileSnapshot{Path: path}
}

func (s *FileSnapshot) Load(ctx context.Context) ([]GameDTO, error) {
	data, err := os.ReadFile(s.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNoSnapshot
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(s.Path, data)
}

// Save replaces the file atomically.
func (s *FileSnapshot) Save(ctx context.Context, games []GameDTO) error {
	data, err := json.Marshal(games)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}

	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.Path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}
	return nil
}

type s3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Snapshot keeps the snapshot as a single object in a bucket.
type S3Snapshot struct {
	client s3API
	bucket string
	key    string
}

func NewS3Snapshot(client s3API, bucket, key string) *S3Snapshot {
	return &S3Snapshot{client: client, bucket: bucket, key: key}
}

func (s *S3Snapshot) Load(ctx context.Context) ([]GameDTO, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return nil, ErrNoSnapshot
		}
		return nil, fmt.Errorf("failed to get snapshot object: %w", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot object: %w", err)
	}
	return decodeSnapshot("s3://"+s.bucket+"/"+s.key, data)
}

func (s *S3Snapshot) Save(ctx context.Context, games []GameDTO) error {
	data, err := json.Marshal(games)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("failed to put snapshot object: %w", err)
	}
	return nil
}
