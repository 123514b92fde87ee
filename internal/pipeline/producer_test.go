package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/decoder"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/frameslot"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/metrics"
	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pixfmt"
)

func TestProducer_FiltersStreamIndex(t *testing.T) {
	// Units 1..5 with indices [0,1,0,2,0]; only 1, 3, 5 may reach the slot.
	src := newGatedSource(
		decoder.Step{Unit: unit(0, 1)},
		decoder.Step{Unit: unit(1, 2)},
		decoder.Step{Unit: unit(0, 3)},
		decoder.Step{Unit: unit(2, 4)},
		decoder.Step{Unit: unit(0, 5)},
		decoder.Step{Err: decoder.ErrCorruptUnit},
	)
	slot := frameslot.New()
	p := NewProducer(ProducerConfig{StreamIndex: 0}, src, slot, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- p.Run(ctx) }()

	var seen []byte
	var last uint64
	read := func() {
		f, v, err := slot.ReadLatest(ctx, last)
		require.NoError(t, err)
		last = v
		seen = append(seen, f.Data[0])
	}

	src.release <- struct{}{} // unit 1
	read()
	src.release <- struct{}{} // unit 2, filtered
	src.release <- struct{}{} // unit 3; sending proves unit 2 was handled
	read()
	src.release <- struct{}{} // unit 4, filtered
	src.release <- struct{}{} // unit 5
	read()
	src.release <- struct{}{} // corrupt, skipped

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	assert.Equal(t, []byte{1, 3, 5}, seen)
	assert.Equal(t, uint64(3), slot.Stats().Writes)
	assert.True(t, slot.Closed(), "producer closes the slot on exit")

	decoded, skippedIndex, corrupt := p.Stats()
	assert.Equal(t, uint64(5), decoded)
	assert.Equal(t, uint64(2), skippedIndex)
	assert.Equal(t, uint64(1), corrupt)
}

func TestProducer_ConnectionFailure(t *testing.T) {
	slot := frameslot.New()
	src := decoder.NewMockSource(decoder.MockConfig{OpenErr: decoder.ErrConnection})
	p := NewProducer(ProducerConfig{}, src, slot, nil, nil)

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, decoder.ErrConnection)
	assert.True(t, slot.Closed())
	assert.Zero(t, slot.Version())
}

func TestProducer_ConnectTimeout(t *testing.T) {
	slot := frameslot.New()
	src := &blockingOpenSource{}
	p := NewProducer(ProducerConfig{ConnectTimeout: 50 * time.Millisecond}, src, slot, nil, nil)

	start := time.Now()
	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProducer_FatalDecodeError(t *testing.T) {
	slot := frameslot.New()
	src := decoder.NewScriptedSource(
		decoder.Step{Unit: unit(0, 1)},
		decoder.Step{Err: decoder.ErrSession},
	)
	p := NewProducer(ProducerConfig{}, src, slot, nil, nil)

	err := p.Run(context.Background())
	assert.ErrorIs(t, err, ErrDecode)
	assert.ErrorIs(t, err, decoder.ErrSession)

	// The frame written before the failure is still readable once.
	f, _, err := slot.ReadLatest(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, byte(1), f.Data[0])
}

func TestProducer_ConvertsAndStamps(t *testing.T) {
	slot := frameslot.New()
	m := metrics.New()
	bgr := decoder.Unit{
		Width:  1,
		Height: 2,
		Stride: 4,
		Format: pixfmt.FormatBGR,
		Data:   []byte{3, 2, 1, 0, 6, 5, 4, 0},
	}
	bad := decoder.Unit{Width: 4, Height: 4, Format: pixfmt.FormatRGB, Data: []byte{1}}
	src := decoder.NewScriptedSource(decoder.Step{Unit: bad}, decoder.Step{Unit: bgr})
	p := NewProducer(ProducerConfig{SessionPath: "/camera/x"}, src, slot, nil, m)

	before := time.Now()
	require.NoError(t, p.Run(context.Background()))

	f, _, err := slot.ReadLatest(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, f.Data)
	assert.True(t, f.Valid())
	assert.NotEmpty(t, f.TraceID)
	assert.False(t, f.Timestamp.Before(before), "zero decoder timestamp falls back to wallclock")

	_, _, corrupt := p.Stats()
	assert.Equal(t, uint64(1), corrupt, "geometry mismatch is a corrupt unit")
}

type blockingOpenSource struct{}

func (blockingOpenSource) Open(ctx context.Context) error {
	<-ctx.Done()
	return errors.Join(decoder.ErrConnection, ctx.Err())
}

func (blockingOpenSource) Next(ctx context.Context) (decoder.Unit, error) {
	return decoder.Unit{}, decoder.ErrNotOpen
}

func (blockingOpenSource) Close() error { return nil }
