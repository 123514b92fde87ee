package decoder

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"
)

// rtspProtocolTCP is the GstRTSPLowerTrans flag for interleaved TCP.
const rtspProtocolTCP = 4

// PipelineConfig contains configuration for GStreamer pipeline creation
type PipelineConfig struct {
	RTSPURL    string
	Latency    time.Duration // rtspsrc jitterbuffer latency
	TCPTimeout time.Duration // rtspsrc tcp-timeout
}

// PipelineElements holds references to the static part of the pipeline.
// Decode branches are attached dynamically once rtspsrc exposes its pads.
type PipelineElements struct {
	Pipeline *gst.Pipeline
	RTSPSrc  *gst.Element
}

// Branch is one decode chain for a single video sub-stream:
//
//	rtspsrc pad → decodebin → videoconvert → capsfilter(RGB) → appsink
type Branch struct {
	Index      int
	DecodeBin  *gst.Element
	Converter  *gst.Element
	CapsFilter *gst.Element
	AppSink    *app.Sink
}

// CreatePipeline creates the static pipeline: only rtspsrc, forced to TCP.
//
// The pipeline is configured but NOT started (state remains NULL).
// Caller must call pipeline.SetState(gst.StatePlaying) to start.
func CreatePipeline(cfg PipelineConfig) (*PipelineElements, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return nil, fmt.Errorf("failed to create pipeline: %w", err)
	}

	rtspsrc, err := gst.NewElement("rtspsrc")
	if err != nil {
		return nil, fmt.Errorf("failed to create rtspsrc: %w", err)
	}
	rtspsrc.SetProperty("location", cfg.RTSPURL)
	rtspsrc.SetProperty("protocols", rtspProtocolTCP) // never UDP
	rtspsrc.SetProperty("latency", uint(cfg.Latency.Milliseconds()))
	rtspsrc.SetProperty("ntp-sync", false)
	rtspsrc.SetProperty("tcp-timeout", uint64(cfg.TCPTimeout.Microseconds()))

	if err := pipeline.Add(rtspsrc); err != nil {
		return nil, fmt.Errorf("failed to add rtspsrc: %w", err)
	}

	return &PipelineElements{
		Pipeline: pipeline,
		RTSPSrc:  rtspsrc,
	}, nil
}

// CreateBranch builds and adds a decode branch to the pipeline.
//
// decodebin exposes its output pad only after it has seen the codec, so the
// decodebin → videoconvert link is made by OnDecodedPadAdded.
func CreateBranch(pipeline *gst.Pipeline, index int) (*Branch, error) {
	decodebin, err := gst.NewElement("decodebin")
	if err != nil {
		return nil, fmt.Errorf("failed to create decodebin: %w", err)
	}

	converter, err := gst.NewElement("videoconvert")
	if err != nil {
		return nil, fmt.Errorf("failed to create videoconvert: %w", err)
	}
	converter.SetProperty("n-threads", uint(0)) // 0 = auto-detect cores

	capsfilter, err := gst.NewElement("capsfilter")
	if err != nil {
		return nil, fmt.Errorf("failed to create capsfilter: %w", err)
	}
	capsfilter.SetProperty("caps", gst.NewCapsFromString("video/x-raw,format=RGB"))

	appsink, err := app.NewAppSink()
	if err != nil {
		return nil, fmt.Errorf("failed to create appsink: %w", err)
	}
	appsink.SetProperty("sync", false)       // No sync with clock (real-time)
	appsink.SetProperty("max-buffers", uint(1)) // Keep only latest frame
	appsink.SetProperty("drop", true)        // Drop old frames

	if err := pipeline.AddMany(decodebin, converter, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to add branch %d: %w", index, err)
	}

	if err := gst.ElementLinkMany(converter, capsfilter, appsink.Element); err != nil {
		return nil, fmt.Errorf("failed to link branch %d: %w", index, err)
	}

	slog.Debug("decoder: branch created", "stream_index", index)

	return &Branch{
		Index:      index,
		DecodeBin:  decodebin,
		Converter:  converter,
		CapsFilter: capsfilter,
		AppSink:    appsink,
	}, nil
}

// StartBranch moves every branch element to the pipeline's state.
func StartBranch(b *Branch) {
	for _, elem := range []*gst.Element{b.AppSink.Element, b.CapsFilter, b.Converter, b.DecodeBin} {
		elem.SyncStateWithParent()
	}
}

// AttachFakeSink terminates a pad nobody decodes (audio, metadata) so that
// rtspsrc does not fail with not-linked.
func AttachFakeSink(pipeline *gst.Pipeline, pad *gst.Pad) error {
	sink, err := gst.NewElement("fakesink")
	if err != nil {
		return fmt.Errorf("failed to create fakesink: %w", err)
	}
	sink.SetProperty("sync", false)

	if err := pipeline.Add(sink); err != nil {
		return fmt.Errorf("failed to add fakesink: %w", err)
	}
	sink.SyncStateWithParent()

	return linkPads(pad, sink.GetStaticPad("sink"))
}

// DestroyPipeline cleans up GStreamer pipeline resources
//
// Sets pipeline state to NULL and releases all resources.
// Safe to call even if pipeline is already destroyed.
func DestroyPipeline(elements *PipelineElements) error {
	if elements == nil || elements.Pipeline == nil {
		return nil
	}

	if err := elements.Pipeline.SetState(gst.StateNull); err != nil {
		return fmt.Errorf("failed to set pipeline to NULL: %w", err)
	}

	return nil
}

func linkPads(src, sink *gst.Pad) error {
	if sink == nil {
		return fmt.Errorf("sink pad not available")
	}
	if ret := src.Link(sink); ret != gst.PadLinkOK {
		return fmt.Errorf("failed to link %s → %s: %v", src.GetName(), sink.GetName(), ret)
	}
	return nil
}
