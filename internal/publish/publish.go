// Package publish uploads the built dist directory to an S3-compatible
// object store: every manifest and blob individually, plus one zip archive
// of the whole dist for bulk download.
package publish

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"soundloom/internal/logging"
)

// ArchiveName is the bundled-dist object uploaded alongside the individual
// files.
const ArchiveName = "sounds.zip"

// S3Client abstracts the S3 API operations the publisher uses. The
// [s3.Client] type satisfies this interface.
type S3Client interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures a publish run.
type Options struct {
	Bucket string
	Prefix string
	// SkipArchive uploads only the individual files.
	SkipArchive bool
}

// Result summarizes one publish run.
type Result struct {
	Uploaded     []string
	ArchiveBytes int64
}

// Publisher uploads dist contents to an object store.
type Publisher struct {
	client S3Client
	opts   Options
	logger *slog.Logger
}

// New constructs a publisher. The client should be pre-configured with
// credentials and region.
func New(client S3Client, opts Options, logger *slog.Logger) (*Publisher, error) {
	if strings.TrimSpace(opts.Bucket) == "" {
		return nil, fmt.Errorf("publish: bucket is required")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Publisher{
		client: client,
		opts:   opts,
		logger: logging.WithComponent(logger, "publish"),
	}, nil
}

// Publish uploads every file under distDir, then the zip archive of the
// whole directory. Keys mirror the dist layout under the configured prefix,
// so the uploaded bucket can be served directly as the loader's base URL.
func (p *Publisher) Publish(ctx context.Context, distDir string) (*Result, error) {
	files, err := listFiles(distDir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("publish: dist directory %s is empty, run a build first", distDir)
	}

	result := &Result{}
	for _, name := range files {
		if err := p.uploadFile(ctx, distDir, name); err != nil {
			return nil, err
		}
		result.Uploaded = append(result.Uploaded, name)
	}

	if !p.opts.SkipArchive {
		size, archiveErr := p.uploadArchive(ctx, distDir, files)
		if archiveErr != nil {
			return nil, archiveErr
		}
		result.Uploaded = append(result.Uploaded, ArchiveName)
		result.ArchiveBytes = size
	}

	p.logger.Info("publish complete", "objects", len(result.Uploaded), "bucket", p.opts.Bucket)
	return result, nil
}

func (p *Publisher) uploadFile(ctx context.Context, distDir, name string) error {
	file, err := os.Open(filepath.Join(distDir, filepath.FromSlash(name)))
	if err != nil {
		return fmt.Errorf("publish: open %s: %w", name, err)
	}
	defer file.Close()

	if err := p.put(ctx, name, file); err != nil {
		return err
	}
	p.logger.Debug("uploaded", "key", p.key(name))
	return nil
}

// uploadArchive zips the listed files in memory and uploads the archive.
// Dist directories are small enough (a few sprites per speaker) that
// buffering the zip beats a multipart streaming dance.
func (p *Publisher) uploadArchive(ctx context.Context, distDir string, files []string) (int64, error) {
	var buffer bytes.Buffer
	archive := zip.NewWriter(&buffer)
	for _, name := range files {
		entry, err := archive.Create(name)
		if err != nil {
			return 0, fmt.Errorf("publish: archive entry %s: %w", name, err)
		}
		file, err := os.Open(filepath.Join(distDir, filepath.FromSlash(name)))
		if err != nil {
			return 0, fmt.Errorf("publish: open %s: %w", name, err)
		}
		_, err = io.Copy(entry, file)
		file.Close()
		if err != nil {
			return 0, fmt.Errorf("publish: archive %s: %w", name, err)
		}
	}
	if err := archive.Close(); err != nil {
		return 0, fmt.Errorf("publish: finalize archive: %w", err)
	}

	if err := p.put(ctx, ArchiveName, bytes.NewReader(buffer.Bytes())); err != nil {
		return 0, err
	}
	return int64(buffer.Len()), nil
}

func (p *Publisher) put(ctx context.Context, name string, body io.Reader) error {
	_, err := p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(p.opts.Bucket),
		Key:    aws.String(p.key(name)),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("publish: upload %s: %w", name, err)
	}
	return nil
}

func (p *Publisher) key(name string) string {
	prefix := strings.Trim(p.opts.Prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// listFiles returns slash-separated relative paths of every regular file
// under dir, sorted, skipping staging leftovers and hidden files.
func listFiles(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			if entry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			return nil
		}
		relative, relErr := filepath.Rel(dir, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, filepath.ToSlash(relative))
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("publish: walk dist: %w", err)
	}
	sort.Strings(files)
	return files, nil
}
