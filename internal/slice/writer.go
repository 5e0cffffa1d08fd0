package slice

import (
	"compress/gzip"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// producerLayout renders the TimestampWidth-byte prefix written by the
// downloader: seven fractional digits and a Z.
const producerLayout = "2006-01-02T15:04:05.0000000Z"

// FormatTimestamp renders t in the producer's fixed-width format.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(producerLayout)
}

// FormatLine builds one slice line from a timestamp and a payload.
func FormatLine(t time.Time, payload []byte) []byte {
	line := make([]byte, 0, TimestampWidth+1+len(payload))
	line = append(line, FormatTimestamp(t)...)
	line = append(line, ' ')
	return append(line, payload...)
}

// WriteFile writes lines, each followed by a newline, as a gzip slice at
// path. The file is written under a temporary name in the same directory
// and renamed into place, so a waiter never observes a partial slice.
func WriteFile(path string, lines [][]byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating slice directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".slice-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp slice: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	gz := gzip.NewWriter(tmp)
	for _, line := range lines {
		if _, err := gz.Write(line); err != nil {
			return fmt.Errorf("writing slice: %w", err)
		}
		if _, err := gz.Write([]byte{'\n'}); err != nil {
			return fmt.Errorf("writing slice: %w", err)
		}
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("flushing slice: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp slice: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("publishing slice: %w", err)
	}
	committed = true
	return nil
}
