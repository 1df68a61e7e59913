package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"executor-metrics-backend/internal/presenter"
	"executor-metrics-backend/internal/series"
)

func TestInMemorySessionStore(t *testing.T) {
	s := NewInMemorySessionStore()
	ctx, cancel := context.WithCancel(context.Background())
	p := presenter.NewLivePresenter(series.NewBuilder(series.DefaultOptions()), 0)

	session := s.Create("app-1", p, cancel)
	require.NotEmpty(t, session.ID)
	assert.Equal(t, 1, s.Count())

	got, err := s.Get(session.ID)
	require.NoError(t, err)
	assert.Same(t, session, got)

	removed, err := s.Remove(session.ID)
	require.NoError(t, err)
	removed.Stop()
	assert.ErrorIs(t, ctx.Err(), context.Canceled)

	_, err = s.Get(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = s.Remove(session.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, s.Count())
}
