package decoder

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSource_NotOpen(t *testing.T) {
	m := NewMockSource(MockConfig{})
	_, err := m.Next(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestMockSource_Synthetic(t *testing.T) {
	m := NewMockSource(MockConfig{Width: 4, Height: 2, Streams: 2, Limit: 3})
	require.NoError(t, m.Open(context.Background()))
	defer m.Close()

	ctx := context.Background()
	var indices []int
	var first []byte
	for i := 0; i < 3; i++ {
		u, err := m.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, 4, u.Width)
		assert.Equal(t, 2, u.Height)
		assert.Len(t, u.Data, 4*2*3)
		indices = append(indices, u.StreamIndex)
		if i == 0 {
			first = u.Data
		} else {
			assert.NotEqual(t, first, u.Data, "consecutive frames should differ")
		}
	}
	assert.Equal(t, []int{0, 1, 0}, indices)

	_, err := m.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 3, m.Emitted())
}

func TestMockSource_Script(t *testing.T) {
	boom := errors.New("boom")
	m := NewScriptedSource(
		Step{Unit: Unit{StreamIndex: 1}},
		Step{Err: boom},
	)
	require.NoError(t, m.Open(context.Background()))

	u, err := m.Next(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, u.StreamIndex)

	_, err = m.Next(context.Background())
	assert.ErrorIs(t, err, boom)

	_, err = m.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestMockSource_OpenError(t *testing.T) {
	m := NewMockSource(MockConfig{OpenErr: ErrConnection})
	assert.ErrorIs(t, m.Open(context.Background()), ErrConnection)
}

func TestMockSource_PacedRespectsContext(t *testing.T) {
	m := NewMockSource(MockConfig{FPS: 1})
	require.NoError(t, m.Open(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := m.Next(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestMockSource_CloseIdempotent(t *testing.T) {
	m := NewMockSource(MockConfig{})
	require.NoError(t, m.Open(context.Background()))
	assert.NoError(t, m.Close())
	assert.NoError(t, m.Close())

	_, err := m.Next(context.Background())
	assert.ErrorIs(t, err, ErrNotOpen)
}
