package loader

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
)

// File is a user-selected file. Open is called once, when the
// selection is handled.
type File struct {
	Name string
	Open func() (io.ReadCloser, error)
}

// FromBytes returns a File serving b.
func FromBytes(name string, b []byte) File {
	return File{
		Name: name,
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(b)), nil
		},
	}
}

// FromPath returns a File reading the file at path.
func FromPath(path string) File {
	return File{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}
}

// ctxReader fails the read as soon as ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
