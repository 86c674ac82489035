package storage

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/fluxbase-eu/fluxpack/internal/builderr"
	"github.com/fluxbase-eu/fluxpack/internal/observability"
)

// LocalSink writes bundles to a filesystem
type LocalSink struct {
	fs afero.Fs
}

// NewLocalSink creates a sink on fs, or on the OS filesystem when fs is nil
func NewLocalSink(fs afero.Fs) *LocalSink {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	return &LocalSink{fs: fs}
}

// Name returns the provider name
func (ls *LocalSink) Name() string {
	return "local"
}

// Write creates dir if needed and writes the file through a temporary
// sibling, so a failed write never leaves a truncated bundle behind.
func (ls *LocalSink) Write(ctx context.Context, dir, name string, data []byte) (obj *Object, err error) {
	filePath := filepath.Join(dir, name)

	_, span := observability.StartStorageSpan(ctx, ls.Name(), filePath)
	defer func() { observability.EndSpan(span, err) }()

	if err := ctx.Err(); err != nil {
		return nil, builderr.OutputWrite(filePath, err)
	}

	if err := ls.fs.MkdirAll(dir, 0o755); err != nil {
		return nil, builderr.OutputWrite(filePath, fmt.Errorf("failed to create output directory: %w", err))
	}

	tmpPath := filePath + ".tmp"
	if err := afero.WriteFile(ls.fs, tmpPath, data, 0o644); err != nil {
		_ = ls.fs.Remove(tmpPath)
		return nil, builderr.OutputWrite(filePath, fmt.Errorf("failed to write file: %w", err))
	}
	if err := ls.fs.Rename(tmpPath, filePath); err != nil {
		_ = ls.fs.Remove(tmpPath)
		return nil, builderr.OutputWrite(filePath, fmt.Errorf("failed to move file into place: %w", err))
	}

	info, err := ls.fs.Stat(filePath)
	if err != nil {
		return nil, builderr.OutputWrite(filePath, fmt.Errorf("failed to get file info: %w", err))
	}

	sum := md5.Sum(data)

	log.Debug().
		Str("path", filePath).
		Int64("size", info.Size()).
		Msg("Bundle written")

	return &Object{
		Key:          name,
		Location:     filePath,
		Size:         info.Size(),
		ContentType:  ContentType,
		LastModified: info.ModTime(),
		ETag:         hex.EncodeToString(sum[:]),
	}, nil
}
