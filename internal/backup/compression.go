package backup

import (
	"io"
	"os"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	opserrors "logdb-backup/internal/errors"
)

// Compressor produces and consumes a single compression format over
// streams. Artifacts are compressed file-to-file so a dump never has
// to fit in memory.
type Compressor interface {
	Compress(dst io.Writer, src io.Reader) error
	Decompress(dst io.Writer, src io.Reader) error
	Algorithm() string
}

// CompressionManager dispatches to the configured algorithm.
type CompressionManager struct {
	compressors map[string]Compressor
}

// NewCompressionManager creates a manager with all supported
// algorithms registered.
func NewCompressionManager() *CompressionManager {
	return &CompressionManager{
		compressors: map[string]Compressor{
			"gzip": &GzipCompressor{},
			"zstd": &ZstdCompressor{},
			"lz4":  &LZ4Compressor{},
		},
	}
}

// SupportedAlgorithms returns the registered algorithm names.
func (cm *CompressionManager) SupportedAlgorithms() []string {
	names := make([]string, 0, len(cm.compressors))
	for name := range cm.compressors {
		names = append(names, name)
	}
	return names
}

// CompressFile compresses src into dst using the named algorithm.
// "none" copies the file verbatim.
func (cm *CompressionManager) CompressFile(algorithm, src, dst string) error {
	if algorithm == "none" {
		return copyFile(src, dst)
	}
	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return opserrors.NewCompressionError("unsupported compression algorithm: "+algorithm, nil)
	}

	in, err := os.Open(src)
	if err != nil {
		return opserrors.NewCompressionError("failed to open source file", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return opserrors.NewCompressionError("failed to create compressed file", err)
	}

	if err := compressor.Compress(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return opserrors.NewCompressionError("failed to finalize compressed file", err)
	}
	return nil
}

// DecompressFile decompresses src into dst using the named algorithm.
func (cm *CompressionManager) DecompressFile(algorithm, src, dst string) error {
	if algorithm == "none" {
		return copyFile(src, dst)
	}
	compressor, ok := cm.compressors[algorithm]
	if !ok {
		return opserrors.NewCompressionError("unsupported compression algorithm: "+algorithm, nil)
	}

	in, err := os.Open(src)
	if err != nil {
		return opserrors.NewCompressionError("failed to open compressed file", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return opserrors.NewCompressionError("failed to create decompressed file", err)
	}

	if err := compressor.Decompress(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return opserrors.NewCompressionError("failed to finalize decompressed file", err)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return opserrors.NewStorageError("failed to open source file", err)
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o640)
	if err != nil {
		return opserrors.NewStorageError("failed to create destination file", err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return opserrors.NewStorageError("failed to copy file", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dst)
		return opserrors.NewStorageError("failed to finalize destination file", err)
	}
	return nil
}

// GzipCompressor implements gzip compression
type GzipCompressor struct{}

func (gc *GzipCompressor) Compress(dst io.Writer, src io.Reader) error {
	writer, err := gzip.NewWriterLevel(dst, gzip.DefaultCompression)
	if err != nil {
		return opserrors.NewCompressionError("failed to create gzip writer", err)
	}
	if _, err := io.Copy(writer, src); err != nil {
		writer.Close()
		return opserrors.NewCompressionError("failed to write gzip data", err)
	}
	if err := writer.Close(); err != nil {
		return opserrors.NewCompressionError("failed to close gzip writer", err)
	}
	return nil
}

func (gc *GzipCompressor) Decompress(dst io.Writer, src io.Reader) error {
	reader, err := gzip.NewReader(src)
	if err != nil {
		return opserrors.NewCompressionError("failed to create gzip reader", err)
	}
	defer reader.Close()
	if _, err := io.Copy(dst, reader); err != nil {
		return opserrors.NewCompressionError("failed to read gzip data", err)
	}
	return nil
}

func (gc *GzipCompressor) Algorithm() string { return "gzip" }

// ZstdCompressor implements zstd compression
type ZstdCompressor struct{}

func (zc *ZstdCompressor) Compress(dst io.Writer, src io.Reader) error {
	writer, err := zstd.NewWriter(dst)
	if err != nil {
		return opserrors.NewCompressionError("failed to create zstd writer", err)
	}
	if _, err := io.Copy(writer, src); err != nil {
		writer.Close()
		return opserrors.NewCompressionError("failed to write zstd data", err)
	}
	if err := writer.Close(); err != nil {
		return opserrors.NewCompressionError("failed to close zstd writer", err)
	}
	return nil
}

func (zc *ZstdCompressor) Decompress(dst io.Writer, src io.Reader) error {
	reader, err := zstd.NewReader(src)
	if err != nil {
		return opserrors.NewCompressionError("failed to create zstd reader", err)
	}
	defer reader.Close()
	if _, err := io.Copy(dst, reader.IOReadCloser()); err != nil {
		return opserrors.NewCompressionError("failed to read zstd data", err)
	}
	return nil
}

func (zc *ZstdCompressor) Algorithm() string { return "zstd" }

// LZ4Compressor implements lz4 compression
type LZ4Compressor struct{}

func (lc *LZ4Compressor) Compress(dst io.Writer, src io.Reader) error {
	writer := lz4.NewWriter(dst)
	if _, err := io.Copy(writer, src); err != nil {
		writer.Close()
		return opserrors.NewCompressionError("failed to write lz4 data", err)
	}
	if err := writer.Close(); err != nil {
		return opserrors.NewCompressionError("failed to close lz4 writer", err)
	}
	return nil
}

func (lc *LZ4Compressor) Decompress(dst io.Writer, src io.Reader) error {
	reader := lz4.NewReader(src)
	if _, err := io.Copy(dst, reader); err != nil {
		return opserrors.NewCompressionError("failed to read lz4 data", err)
	}
	return nil
}

func (lc *LZ4Compressor) Algorithm() string { return "lz4" }
