package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGateOpensByDefault(t *testing.T) {
	g := NewGate("news", 15*time.Minute, testLogger())
	assert.True(t, g.Available())
}

func TestGateClosesOnRateLimit(t *testing.T) {
	g := NewGate("news", 15*time.Minute, testLogger())

	g.MarkLimited(errors.New("429"), 0)
	assert.False(t, g.Available())

	st := g.Status()
	assert.Equal(t, "news", st.Name)
	assert.False(t, st.Available)
	assert.Equal(t, 1, st.Failures)
	require.NotNil(t, st.LimitedUntil)
	assert.Equal(t, "429", st.LastError)
}

func TestGateHonorsRetryAfterHint(t *testing.T) {
	g := NewGate("social", 15*time.Minute, testLogger())

	g.MarkLimited(errors.New("429"), 2*time.Second)

	st := g.Status()
	require.NotNil(t, st.LimitedUntil)
	assert.WithinDuration(t, time.Now().Add(2*time.Second), *st.LimitedUntil, time.Second)
}

func TestGateBackoffDoublesAndCaps(t *testing.T) {
	g := NewGate("news", time.Hour, testLogger())

	// First failure: 1h backoff. Second: 2h. Third would be 4h but caps at 2h.
	for i := 0; i < 3; i++ {
		g.MarkLimited(errors.New("429"), 0)
	}

	st := g.Status()
	require.NotNil(t, st.LimitedUntil)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), *st.LimitedUntil, time.Second)
	assert.Equal(t, 3, st.Failures)
}

func TestGateResetsOnSuccess(t *testing.T) {
	g := NewGate("news", 15*time.Minute, testLogger())

	g.MarkLimited(errors.New("429"), 0)
	g.MarkSuccess()

	assert.True(t, g.Available())
	st := g.Status()
	assert.Equal(t, 0, st.Failures)
	assert.Nil(t, st.LimitedUntil)
	assert.Empty(t, st.LastError)
}

func TestExecuteReturnsDefaultWhenClosed(t *testing.T) {
	g := NewGate("news", 15*time.Minute, testLogger())
	g.MarkLimited(errors.New("429"), 0)

	called := false
	got := Execute(context.Background(), g, 42, func(ctx context.Context) (int, error) {
		called = true
		return 7, nil
	})

	assert.False(t, called, "closed gate must not invoke the call")
	assert.Equal(t, 42, got)
}

func TestExecutePassesThroughWhenOpen(t *testing.T) {
	g := NewGate("news", 15*time.Minute, testLogger())

	got := Execute(context.Background(), g, 0, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	assert.Equal(t, 7, got)
}

func TestExecuteReturnsDefaultOnError(t *testing.T) {
	g := NewGate("news", 15*time.Minute, testLogger())

	got := Execute(context.Background(), g, -1, func(ctx context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Equal(t, -1, got)
}
