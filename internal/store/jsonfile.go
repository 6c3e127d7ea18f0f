// Package store persists analysis results and mined puzzles as JSON files,
// zstd-compressed when the path ends in .zst.
package store

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
)

// IsCompressed reports whether path selects zstd compression.
func IsCompressed(path string) bool {
	return strings.HasSuffix(path, ".zst")
}

// WriteJSON writes v to path through a temp file and rename, so readers never
// see a partial file.
func WriteJSON(path string, v any) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", tmpPath, err)
	}

	if err := encode(f, path, v); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}

// Encode writes v as indented JSON to w, compressing when path asks for it.
// Use it for stdout or other non-file sinks.
func Encode(w io.Writer, path string, v any) error {
	return encode(w, path, v)
}

func encode(w io.Writer, path string, v any) error {
	if !IsCompressed(path) {
		return encodeJSON(w, v)
	}
	zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	if err := encodeJSON(zw, v); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

func encodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ReadJSON decodes path into v.
func ReadJSON(path string, v any) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if IsCompressed(path) {
		zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return err
		}
		defer zr.Close()
		r = zr
	}
	if err := json.NewDecoder(r).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}
