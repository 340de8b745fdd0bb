package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/Ganeshpithani/infosys-springboard-internship/internal/utils"
)

// upload is one image received from a client, before it is written to disk.
type upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// stagedBatch is a set of uploads written to a private temp directory.
type stagedBatch struct {
	dir   string
	paths []string // same order as the uploads
	names []string // client-side file names
}

// Cleanup removes the staging directory and anything left in it.
func (b *stagedBatch) Cleanup() {
	if b == nil || b.dir == "" {
		return
	}
	_ = os.RemoveAll(b.dir)
}

// stageUploads writes every upload to <dir>/<prefix><uuid><ext>. The prefix
// marks the files as disposable for the pipeline's temp policy.
func (s *Server) stageUploads(uploads []upload) (*stagedBatch, error) {
	dir, err := os.MkdirTemp(s.cfg.TempDir, "pantry-upload-")
	if err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	batch := &stagedBatch{
		dir:   dir,
		paths: make([]string, len(uploads)),
		names: make([]string, len(uploads)),
	}

	var g errgroup.Group
	g.SetLimit(4)
	for i, up := range uploads {
		name := s.cfg.TempPrefix + uuid.NewString() + uploadExt(up.Name)
		path := filepath.Join(dir, name)
		batch.paths[i] = path
		batch.names[i] = up.Name
		g.Go(func() error {
			return writeUpload(path, up)
		})
	}
	if err := g.Wait(); err != nil {
		batch.Cleanup()
		return nil, err
	}
	return batch, nil
}

func writeUpload(path string, up upload) error {
	src, err := up.Open()
	if err != nil {
		return fmt.Errorf("open upload %q: %w", up.Name, err)
	}
	defer func() { _ = src.Close() }()

	dst, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600) //nolint:gosec // G304: path is built from a generated name
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return fmt.Errorf("write upload %q: %w", up.Name, err)
	}
	return dst.Close()
}

// uploadExt keeps a supported image extension from the client file name.
// Anything else yields no extension, and the pipeline skips the file as
// unsupported.
func uploadExt(name string) string {
	if !utils.IsSupportedImage(name) {
		return ""
	}
	return strings.ToLower(filepath.Ext(name))
}

func multipartUploads(files []*multipart.FileHeader) []upload {
	uploads := make([]upload, len(files))
	for i, fh := range files {
		uploads[i] = upload{
			Name: fh.Filename,
			Open: func() (io.ReadCloser, error) { return fh.Open() },
		}
	}
	return uploads
}

func bytesUpload(name string, data []byte) upload {
	return upload{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}
