package checkpoint

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// Destination is the interface for an archive target (S3, local directory).
type Destination interface {
	// Write stores the checkpoint bytes under the destination's key.
	Write(ctx context.Context, r io.Reader) error
	// String names the destination for logs and reports.
	String() string
}

// Archive copies the checkpoint file to the given destination. The local
// checkpoint stays in place; archiving is an off-box safety copy.
func (m *Manager) Archive(ctx context.Context, dest Destination) error {
	if _, err := m.Info(); err != nil {
		return err
	}
	f, err := os.Open(m.CheckpointPath())
	if err != nil {
		return fmt.Errorf("open checkpoint: %w", err)
	}
	defer f.Close()

	if err := dest.Write(ctx, f); err != nil {
		return fmt.Errorf("archive checkpoint: %w", err)
	}
	m.logger.Info("checkpoint archived", "destination", dest.String())
	return nil
}

// S3Destination writes the checkpoint to an S3-compatible bucket.
type S3Destination struct {
	client *s3.Client
	bucket string
	key    string
}

// NewS3Destination creates an S3 destination. If endpoint is non-empty,
// path-style addressing is enabled (for MinIO and similar).
func NewS3Destination(ctx context.Context, bucket, key, region, endpoint string) (*S3Destination, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	var s3opts []func(*s3.Options)
	if endpoint != "" {
		s3opts = append(s3opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		})
	}

	client := s3.NewFromConfig(cfg, s3opts...)
	return &S3Destination{
		client: client,
		bucket: bucket,
		key:    key,
	}, nil
}

// Write uploads the checkpoint to S3 as the configured object key.
func (d *S3Destination) Write(ctx context.Context, r io.Reader) error {
	contentType := "application/vnd.sqlite3"
	_, err := d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(d.key),
		Body:        r,
		ContentType: &contentType,
	})
	if err != nil {
		return fmt.Errorf("s3 put object: %w", err)
	}
	return nil
}

func (d *S3Destination) String() string {
	return "s3://" + d.bucket + "/" + d.key
}

// DirDestination copies the checkpoint into a local directory.
type DirDestination struct {
	dir  string
	name string
}

// NewDirDestination creates a directory destination; the archive is written
// as <dir>/<name>.
func NewDirDestination(dir, name string) *DirDestination {
	return &DirDestination{dir: dir, name: name}
}

func (d *DirDestination) Write(ctx context.Context, r io.Reader) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	path := filepath.Join(d.dir, d.name)
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create archive file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return fmt.Errorf("write archive file: %w", err)
	}
	return f.Close()
}

func (d *DirDestination) String() string {
	return filepath.Join(d.dir, d.name)
}
