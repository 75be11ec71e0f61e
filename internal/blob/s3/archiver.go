package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/polyedge/polyedge/internal/domain"
)

// archiveBatchSize bounds how many signals are pulled from the store per
// archival pass so a long backlog is drained incrementally.
const archiveBatchSize = 1000

// multipartThreshold is the payload size above which the multipart uploader
// is used instead of a single PutObject.
const multipartThreshold = 8 * 1024 * 1024

// BlobWriter is the narrow upload surface the archiver needs.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
	PutMultipart(ctx context.Context, path string, data io.Reader, partSize int64) error
}

var _ BlobWriter = (*Writer)(nil)

// Archiver moves terminal signals from the primary store to cold storage.
// Each pass queries signals resolved before the retention cutoff, uploads
// them as JSONL partitioned by year-month, and deletes them from the store
// only after the upload succeeded.
type Archiver struct {
	writer        BlobWriter
	signals       domain.SignalStore
	retentionDays int
	logger        *slog.Logger
}

// NewArchiver creates an Archiver that retires signals older than
// retentionDays.
func NewArchiver(writer BlobWriter, signals domain.SignalStore, retentionDays int, logger *slog.Logger) *Archiver {
	return &Archiver{
		writer:        writer,
		signals:       signals,
		retentionDays: retentionDays,
		logger:        logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveSignals performs one archival pass and returns the number of
// signals moved to cold storage.
func (a *Archiver) ArchiveSignals(ctx context.Context) (int, error) {
	cutoff := time.Now().UTC().AddDate(0, 0, -a.retentionDays)

	signals, err := a.signals.ListTerminalBefore(ctx, cutoff, archiveBatchSize)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive signals query: %w", err)
	}
	if len(signals) == 0 {
		return 0, nil
	}

	// Partition by the year-month each signal resolved in. Each pass writes
	// its own object so earlier archives are never overwritten.
	byMonth := make(map[string][]domain.Signal)
	for _, sig := range signals {
		at := sig.CreatedAt
		if sig.ResolvedAt != nil {
			at = *sig.ResolvedAt
		}
		month := at.UTC().Format("2006-01")
		byMonth[month] = append(byMonth[month], sig)
	}

	archived := 0
	for month, batch := range byMonth {
		buf, err := marshalJSONL(batch)
		if err != nil {
			return archived, fmt.Errorf("s3blob: archive signals marshal: %w", err)
		}

		path := fmt.Sprintf("archive/signals/%s-%s.jsonl", month, time.Now().UTC().Format("20060102T150405"))
		if err := a.upload(ctx, path, buf); err != nil {
			return archived, fmt.Errorf("s3blob: archive signals upload: %w", err)
		}

		ids := make([]string, len(batch))
		for i, sig := range batch {
			ids[i] = sig.ID
		}
		if err := a.signals.DeleteSignals(ctx, ids); err != nil {
			// The upload already happened, so the worst case on retry is a
			// duplicate archive object, never data loss.
			return archived, fmt.Errorf("s3blob: archive signals delete: %w", err)
		}

		archived += len(batch)
		a.logger.Info("archived signals",
			slog.String("path", path),
			slog.Int("count", len(batch)))
	}

	return archived, nil
}

func (a *Archiver) upload(ctx context.Context, path string, buf []byte) error {
	if len(buf) > multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), int64(multipartThreshold))
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson")
}

// RunLoop runs archival passes on the given interval until the context is
// cancelled. Failures are logged and retried on the next tick.
func (a *Archiver) RunLoop(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			count, err := a.ArchiveSignals(ctx)
			if err != nil {
				a.logger.Error("archival pass failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("archival pass complete", slog.Int("archived", count))
			}
		}
	}
}

// marshalJSONL serialises a slice of values as newline-delimited JSON.
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
