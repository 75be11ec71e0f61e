package s3blob

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/polyedge/polyedge/internal/domain"
)

type fakeWriter struct {
	puts map[string]string
	fail bool
}

func newFakeWriter() *fakeWriter {
	return &fakeWriter{puts: make(map[string]string)}
}

func (w *fakeWriter) Put(_ context.Context, path string, data io.Reader, _ string) error {
	if w.fail {
		return io.ErrClosedPipe
	}
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	w.puts[path] = string(b)
	return nil
}

func (w *fakeWriter) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	return w.Put(ctx, path, data, "")
}

type fakeSignalStore struct {
	signals map[string]domain.Signal
	deleted []string
}

func newFakeSignalStore() *fakeSignalStore {
	return &fakeSignalStore{signals: make(map[string]domain.Signal)}
}

func (s *fakeSignalStore) CreateSignal(_ context.Context, sig domain.Signal) error {
	s.signals[sig.ID] = sig
	return nil
}

func (s *fakeSignalStore) UpdateSignal(context.Context, string, domain.SignalUpdate) error {
	return nil
}

func (s *fakeSignalStore) GetSignal(_ context.Context, id string) (domain.Signal, error) {
	sig, ok := s.signals[id]
	if !ok {
		return domain.Signal{}, domain.ErrNotFound
	}
	return sig, nil
}

func (s *fakeSignalStore) ListSignals(context.Context, domain.SignalListOpts) ([]domain.Signal, error) {
	return nil, nil
}

func (s *fakeSignalStore) ListActiveSignals(context.Context) ([]domain.Signal, error) {
	return nil, nil
}

func (s *fakeSignalStore) SignalStats(context.Context) (domain.SignalStats, error) {
	return domain.SignalStats{}, nil
}

func (s *fakeSignalStore) SignalStatsByType(context.Context) (map[domain.SignalType]domain.SignalStats, error) {
	return nil, nil
}

func (s *fakeSignalStore) ListTerminalBefore(_ context.Context, before time.Time, _ int) ([]domain.Signal, error) {
	var out []domain.Signal
	for _, sig := range s.signals {
		if !sig.Status.Terminal() {
			continue
		}
		at := sig.CreatedAt
		if sig.ResolvedAt != nil {
			at = *sig.ResolvedAt
		}
		if at.Before(before) {
			out = append(out, sig)
		}
	}
	return out, nil
}

func (s *fakeSignalStore) DeleteSignals(_ context.Context, ids []string) error {
	for _, id := range ids {
		delete(s.signals, id)
		s.deleted = append(s.deleted, id)
	}
	return nil
}

func terminalSignal(id string, resolvedAt time.Time) domain.Signal {
	status := domain.StatusResolvedWin
	return domain.Signal{
		ID:         id,
		CreatedAt:  resolvedAt.Add(-24 * time.Hour),
		MarketID:   "m-" + id,
		Status:     status,
		ResolvedAt: &resolvedAt,
	}
}

func TestArchiverMovesOldTerminalSignals(t *testing.T) {
	store := newFakeSignalStore()
	writer := newFakeWriter()

	old := time.Now().UTC().AddDate(0, 0, -120)
	require.NoError(t, store.CreateSignal(context.Background(), terminalSignal("sig-old", old)))
	require.NoError(t, store.CreateSignal(context.Background(), terminalSignal("sig-recent", time.Now().UTC().Add(-time.Hour))))

	arch := NewArchiver(writer, store, 90, slog.New(slog.NewTextHandler(io.Discard, nil)))
	count, err := arch.ArchiveSignals(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// The old signal was uploaded under its resolution month and deleted.
	require.Len(t, writer.puts, 1)
	for path, body := range writer.puts {
		assert.True(t, strings.HasPrefix(path, "archive/signals/"+old.Format("2006-01")))
		assert.Contains(t, body, `"sig-old"`)
	}
	assert.Equal(t, []string{"sig-old"}, store.deleted)

	// The recent terminal signal stays in the store.
	_, err = store.GetSignal(context.Background(), "sig-recent")
	assert.NoError(t, err)
}

func TestArchiverNoBacklogIsNoOp(t *testing.T) {
	store := newFakeSignalStore()
	writer := newFakeWriter()

	arch := NewArchiver(writer, store, 90, slog.New(slog.NewTextHandler(io.Discard, nil)))
	count, err := arch.ArchiveSignals(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Empty(t, writer.puts)
}

func TestArchiverKeepsSignalsWhenUploadFails(t *testing.T) {
	store := newFakeSignalStore()
	writer := newFakeWriter()
	writer.fail = true

	old := time.Now().UTC().AddDate(0, 0, -120)
	require.NoError(t, store.CreateSignal(context.Background(), terminalSignal("sig-old", old)))

	arch := NewArchiver(writer, store, 90, slog.New(slog.NewTextHandler(io.Discard, nil)))
	_, err := arch.ArchiveSignals(context.Background())
	require.Error(t, err)

	// Nothing was deleted.
	_, err = store.GetSignal(context.Background(), "sig-old")
	assert.NoError(t, err)
	assert.Empty(t, store.deleted)
}
