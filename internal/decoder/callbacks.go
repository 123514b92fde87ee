package decoder

import (
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/make87-apps/rtsp-camera-driver-rgb/internal/pixfmt"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// result is what a sample callback hands to Next.
type result struct {
	unit Unit
	err  error
}

// CallbackContext holds state needed by GStreamer callbacks of one branch
type CallbackContext struct {
	StreamIndex   int
	Units         chan<- result
	Done          <-chan struct{}
	FramesDecoded *atomic.Uint64
	BytesRead     *atomic.Uint64
}

// OnNewSample is called by GStreamer when a decoded RGB picture is available
//
// This callback:
//  1. Pulls the sample from the appsink
//  2. Reads geometry and format from the negotiated caps
//  3. Copies data (GStreamer will reuse the buffer)
//  4. Hands the Unit to Next, blocking until it is taken or the source closes
//
// Unusable samples are reported as ErrCorruptUnit instead of terminating the
// stream: a single bad picture should not kill the session.
func OnNewSample(sink *app.Sink, ctx *CallbackContext) gst.FlowReturn {
	sample := sink.PullSample()
	if sample == nil {
		return deliver(ctx, result{err: fmt.Errorf("%w: no sample on stream %d", ErrCorruptUnit, ctx.StreamIndex)})
	}

	width, height, format, err := videoInfo(sample.GetCaps())
	if err != nil {
		return deliver(ctx, result{err: fmt.Errorf("%w: %v", ErrCorruptUnit, err)})
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return deliver(ctx, result{err: fmt.Errorf("%w: no buffer on stream %d", ErrCorruptUnit, ctx.StreamIndex)})
	}

	mapInfo := buffer.Map(gst.MapRead)
	data := mapInfo.Bytes()
	if len(data) == 0 {
		buffer.Unmap()
		return deliver(ctx, result{err: fmt.Errorf("%w: empty buffer on stream %d", ErrCorruptUnit, ctx.StreamIndex)})
	}

	// Copy frame data (GStreamer will reuse buffer)
	pixels := make([]byte, len(data))
	copy(pixels, data)
	buffer.Unmap()

	ctx.FramesDecoded.Add(1)
	ctx.BytesRead.Add(uint64(len(pixels)))

	return deliver(ctx, result{unit: Unit{
		StreamIndex: ctx.StreamIndex,
		Width:       width,
		Height:      height,
		Stride:      pixfmt.InferStride(format, width, height, len(pixels)),
		Format:      format,
		Data:        pixels,
		Timestamp:   time.Now(),
	}})
}

func deliver(ctx *CallbackContext, r result) gst.FlowReturn {
	select {
	case ctx.Units <- r:
		return gst.FlowOK
	case <-ctx.Done:
		return gst.FlowEOS
	}
}

// OnDecodedPadAdded links a decodebin output pad to the branch converter.
//
// decodebin may also expose non-video pads; those are left unlinked.
func OnDecodedPadAdded(srcPad *gst.Pad, converter *gst.Element) {
	if !padHasPrefix(srcPad, "video/") {
		slog.Debug("decoder: ignoring non-video decoded pad", "pad", srcPad.GetName())
		return
	}

	sinkPad := converter.GetStaticPad("sink")
	if sinkPad != nil && sinkPad.IsLinked() {
		slog.Debug("decoder: converter already linked", "pad", srcPad.GetName())
		return
	}

	if err := linkPads(srcPad, sinkPad); err != nil {
		slog.Error("decoder: failed to link decoded pad", "error", err)
		return
	}

	slog.Debug("decoder: decoded pad linked", "pad", srcPad.GetName())
}

// isVideoRTPPad reports whether an rtspsrc pad carries video.
func isVideoRTPPad(pad *gst.Pad) bool {
	caps := pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return false
	}
	media, err := caps.GetStructureAt(0).GetValue("media")
	if err != nil {
		return false
	}
	s, ok := media.(string)
	return ok && s == "video"
}

func padHasPrefix(pad *gst.Pad, prefix string) bool {
	caps := pad.GetCurrentCaps()
	if caps == nil || caps.GetSize() == 0 {
		return false
	}
	return strings.HasPrefix(caps.GetStructureAt(0).Name(), prefix)
}

// videoInfo extracts width, height and pixel format from video/x-raw caps.
func videoInfo(caps *gst.Caps) (int, int, pixfmt.Format, error) {
	if caps == nil || caps.GetSize() == 0 {
		return 0, 0, pixfmt.FormatUnknown, fmt.Errorf("sample has no caps")
	}
	structure := caps.GetStructureAt(0)

	width, err := intField(structure, "width")
	if err != nil {
		return 0, 0, pixfmt.FormatUnknown, err
	}
	height, err := intField(structure, "height")
	if err != nil {
		return 0, 0, pixfmt.FormatUnknown, err
	}

	name, err := structure.GetValue("format")
	if err != nil {
		return 0, 0, pixfmt.FormatUnknown, fmt.Errorf("caps without format: %w", err)
	}
	s, _ := name.(string)
	format := pixfmt.ParseFormat(s)
	if format == pixfmt.FormatUnknown {
		return 0, 0, pixfmt.FormatUnknown, fmt.Errorf("unexpected format %q", s)
	}

	return width, height, format, nil
}

func intField(structure *gst.Structure, key string) (int, error) {
	v, err := structure.GetValue(key)
	if err != nil {
		return 0, fmt.Errorf("caps without %s: %w", key, err)
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case uint:
		return int(n), nil
	default:
		return 0, fmt.Errorf("caps field %s has type %T", key, v)
	}
}
