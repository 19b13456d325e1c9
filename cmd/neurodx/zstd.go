package main

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"

	"github.com/klauspost/compress/zstd"
	"go.uber.org/zap"
)

var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// newCompressedSink opens the file named by the URL path for zstd-compressed
// logging. A file that already holds zstd frames is appended to; anything
// else is truncated.
func newCompressedSink(u *url.URL) (zap.Sink, error) {
	filePath := u.Path

	flags := os.O_CREATE | os.O_WRONLY

	fileInfo, err := os.Stat(filePath)
	if err == nil && fileInfo.Size() > 0 {
		if isValidZstdFile(filePath) {
			flags |= os.O_APPEND
		} else {
			flags |= os.O_TRUNC
		}
	}

	file, err := os.OpenFile(filePath, flags, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open neurodx log %s: %w", filePath, err)
	}

	encoder, err := zstd.NewWriter(file, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to start compression for neurodx log %s: %w", filePath, err)
	}

	return &compressedSink{
		path:    filePath,
		file:    file,
		encoder: encoder,
	}, nil
}

// isValidZstdFile reports whether the file starts with the zstd magic number.
func isValidZstdFile(filePath string) bool {
	file, err := os.Open(filePath)
	if err != nil {
		return false
	}
	defer func() {
		_ = file.Close()
	}()

	buf := make([]byte, len(zstdMagic))
	if _, err := io.ReadFull(file, buf); err != nil {
		return false
	}

	return bytes.Equal(buf, zstdMagic)
}

type compressedSink struct {
	path    string
	file    *os.File
	encoder *zstd.Encoder
}

// Write returns len(p) on success, not the compressed byte count.
func (s *compressedSink) Write(p []byte) (int, error) {
	if _, err := s.encoder.Write(p); err != nil {
		return 0, fmt.Errorf("failed to write neurodx log %s: %w", s.path, err)
	}
	return len(p), nil
}

func (s *compressedSink) Sync() error {
	if err := s.encoder.Flush(); err != nil {
		return fmt.Errorf("failed to flush neurodx log %s: %w", s.path, err)
	}
	return s.file.Sync()
}

// Close finishes the frame and always closes the file.
func (s *compressedSink) Close() error {
	encErr := s.encoder.Close()
	fileErr := s.file.Close()

	if encErr != nil {
		return encErr
	}
	return fileErr
}
