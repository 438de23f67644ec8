// Package rom reads ROM images from disk or from uploaded bytes,
// unpacking the archive formats ROMs are commonly shipped in.
package rom

import (
	"archive/zip"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/google/brotli/go/cbrotli"
)

var (
	// ErrEmptyArchive is returned when an archive holds no files.
	ErrEmptyArchive = errors.New("rom: archive is empty")
	// ErrTooLarge is returned when an archive unpacks to more than
	// the limit given to DecodeLimit.
	ErrTooLarge = errors.New("rom: unpacked image too large")
)

// LoadFile loads the given file and performs decompression if necessary.
func LoadFile(filename string) ([]byte, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Decode(filename, data)
}

// Decode unpacks data according to the extension of name. Archives
// yield their first regular file. Anything else, including plain
// .gb/.gbc images, is returned as is: the bytes are never checked
// for being a valid ROM.
func Decode(name string, data []byte) ([]byte, error) {
	return DecodeLimit(name, data, 0)
}

// DecodeLimit is Decode, but stops unpacking and returns ErrTooLarge
// once an archive yields more than limit bytes. A limit of zero or
// less unpacks everything.
func DecodeLimit(name string, data []byte, limit int64) ([]byte, error) {
	var decoder io.Reader
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".gz":
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("gzip %s: %w", name, err)
		}
		defer r.Close()
		decoder = r
	case ".br":
		r := cbrotli.NewReader(bytes.NewReader(data))
		defer r.Close()
		decoder = r
	case ".zip":
		zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", name, err)
		}
		f := firstZipFile(zr.File)
		if f == nil {
			return nil, fmt.Errorf("zip %s: %w", name, ErrEmptyArchive)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("zip %s: %w", name, err)
		}
		defer rc.Close()
		decoder = rc
	case ".7z":
		zr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
		if err != nil {
			return nil, fmt.Errorf("7z %s: %w", name, err)
		}
		f := firstSevenZipFile(zr.File)
		if f == nil {
			return nil, fmt.Errorf("7z %s: %w", name, ErrEmptyArchive)
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("7z %s: %w", name, err)
		}
		defer rc.Close()
		decoder = rc
	default:
		return data, nil
	}

	if limit > 0 {
		decoder = io.LimitReader(decoder, limit+1)
	}
	out, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("decompress %s: %w", name, err)
	}
	if limit > 0 && int64(len(out)) > limit {
		return nil, fmt.Errorf("%s: %w: limit is %d bytes", name, ErrTooLarge, limit)
	}
	return out, nil
}

func firstZipFile(files []*zip.File) *zip.File {
	for _, f := range files {
		if !f.FileInfo().IsDir() {
			return f
		}
	}
	return nil
}

func firstSevenZipFile(files []*sevenzip.File) *sevenzip.File {
	for _, f := range files {
		if !f.FileInfo().IsDir() {
			return f
		}
	}
	return nil
}
