package bundle

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path"
	"time"
)

// Archiver writes bundles as tar.gz archives rooted at a stackpilot/
// directory, for review before a deployment.
type Archiver struct {
	// CompressionLevel sets gzip compression level (1-9, default 6).
	CompressionLevel int
}

// NewArchiver creates a new archiver with default settings.
func NewArchiver() *Archiver {
	return &Archiver{
		CompressionLevel: gzip.DefaultCompression,
	}
}

// CreateArchive writes b to outputPath.
func (a *Archiver) CreateArchive(b *Bundle, outputPath string) error {
	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	if err := a.WriteArchive(b, file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

// WriteArchive writes b as a tar.gz archive to w.
func (a *Archiver) WriteArchive(b *Bundle, w io.Writer) error {
	gzWriter, err := gzip.NewWriterLevel(w, a.CompressionLevel)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzWriter)

	for _, file := range b.Files {
		mode := file.Mode
		if mode == 0 {
			mode = 0644
		}
		if err := writeFile(tarWriter, path.Join("stackpilot", file.Path), []byte(file.Content), mode, b.CreatedAt); err != nil {
			return fmt.Errorf("failed to write %s: %w", file.Path, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

// writeFile writes a single file to the tar archive.
func writeFile(tw *tar.Writer, name string, content []byte, mode os.FileMode, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Mode:    int64(mode.Perm()),
		Size:    int64(len(content)),
		ModTime: modTime,
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if _, err := tw.Write(content); err != nil {
		return err
	}

	return nil
}
