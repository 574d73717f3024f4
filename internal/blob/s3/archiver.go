package s3blob

import (
	"bytes"
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

const (
	jsonlContentType = "application/x-ndjson"

	// multipartThreshold switches uploads to the multipart manager.
	multipartThreshold = 8 * 1024 * 1024
)

// BetSource lists journaled bets for archival.
type BetSource interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.Bet, error)
}

// BetArchiver implements domain.Archiver. It exports bets placed before a
// cutoff to one JSONL object per calendar month,
// archive/bets/YYYY-MM.jsonl, merging with any object already there.
// Archived rows are left in the primary store.
type BetArchiver struct {
	bets   BetSource
	writer domain.BlobWriter
	reader domain.BlobReader
	logger *slog.Logger
}

var _ domain.Archiver = (*BetArchiver)(nil)

// NewBetArchiver creates a BetArchiver.
func NewBetArchiver(bets BetSource, writer domain.BlobWriter, reader domain.BlobReader, logger *slog.Logger) *BetArchiver {
	return &BetArchiver{
		bets:   bets,
		writer: writer,
		reader: reader,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveBets uploads every bet placed before the cutoff and returns how
// many were exported.
func (a *BetArchiver) ArchiveBets(ctx context.Context, before time.Time) (int64, error) {
	bets, err := a.bets.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive bets query: %w", err)
	}
	if len(bets) == 0 {
		return 0, nil
	}

	byMonth := make(map[string][]domain.Bet)
	for _, b := range bets {
		month := b.PlacedAt.UTC().Format("2006-01")
		byMonth[month] = append(byMonth[month], b)
	}

	months := make([]string, 0, len(byMonth))
	for m := range byMonth {
		months = append(months, m)
	}
	slices.Sort(months)

	for _, month := range months {
		path := archivePath("bets", month)

		merged, err := a.merge(ctx, path, byMonth[month])
		if err != nil {
			return 0, err
		}
		buf, err := marshalJSONL(merged)
		if err != nil {
			return 0, fmt.Errorf("s3blob: archive bets marshal %s: %w", month, err)
		}
		if err := a.upload(ctx, path, buf); err != nil {
			return 0, fmt.Errorf("s3blob: archive bets upload %s: %w", month, err)
		}

		a.logger.InfoContext(ctx, "bets archived",
			slog.String("path", path),
			slog.Int("new", len(byMonth[month])),
			slog.Int("total", len(merged)),
		)
	}

	return int64(len(bets)), nil
}

// merge combines fresh bets with an existing archive object. Fresh rows
// replace archived rows with the same id.
func (a *BetArchiver) merge(ctx context.Context, path string, fresh []domain.Bet) ([]domain.Bet, error) {
	byID := make(map[int64]domain.Bet, len(fresh))

	exists, err := a.reader.Exists(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive bets check %s: %w", path, err)
	}
	if exists {
		existing, err := a.load(ctx, path)
		if err != nil {
			return nil, err
		}
		for _, b := range existing {
			byID[b.ID] = b
		}
	}
	for _, b := range fresh {
		byID[b.ID] = b
	}

	out := make([]domain.Bet, 0, len(byID))
	for _, b := range byID {
		out = append(out, b)
	}
	slices.SortFunc(out, func(x, y domain.Bet) int {
		if c := x.PlacedAt.Compare(y.PlacedAt); c != 0 {
			return c
		}
		return cmp.Compare(x.ID, y.ID)
	})
	return out, nil
}

func (a *BetArchiver) load(ctx context.Context, path string) ([]domain.Bet, error) {
	rc, err := a.reader.Get(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("s3blob: archive bets read %s: %w", path, err)
	}
	defer rc.Close()

	bets, err := unmarshalJSONL[domain.Bet](rc)
	if err != nil {
		return nil, fmt.Errorf("s3blob: archive bets decode %s: %w", path, err)
	}
	return bets, nil
}

func (a *BetArchiver) upload(ctx context.Context, path string, buf []byte) error {
	if len(buf) >= multipartThreshold {
		return a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
	}
	return a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
}

// archivePath builds the object key for one month of a record kind, e.g.
// archive/bets/2026-01.jsonl.
func archivePath(kind, month string) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, month)
}

// marshalJSONL encodes records as newline-delimited JSON.
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

func unmarshalJSONL[T any](r io.Reader) ([]T, error) {
	dec := json.NewDecoder(r)
	var out []T
	for {
		var rec T
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("jsonl decode record %d: %w", len(out), err)
		}
		out = append(out, rec)
	}
}
