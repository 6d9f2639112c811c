// Package uvccapture captures raw frames from UVC (USB Video Class) cameras
// and hands them to a consumer goroutine, decoded to packed RGB or BGR.
//
// This module is part of Orion 2.0 and covers local USB cameras next to the
// RTSP path in stream-capture. A transport callback produces frames on its
// own goroutine; the Camera queues them and the consumer polls.
//
// # Quick Start
//
//	transport, _ := uvccapture.NewTransport("v4l2")
//
//	cam, err := uvccapture.NewCamera(transport, uvccapture.Config{
//	    Device:   "/dev/video0",
//	    Format:   uvccapture.ColorFormatYUYV,
//	    Width:    640,
//	    Height:   480,
//	    FPS:      30,
//	    PollMode: uvccapture.PollBlocking,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	if err := cam.InitWithRetry(ctx, uvccapture.DefaultRetryConfig()); err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.Deinit()
//
//	if err := cam.StartStreaming(); err != nil {
//	    log.Fatal(err)
//	}
//	defer cam.StopStreaming()
//
//	rgb := &uvccapture.Frame{}
//	for {
//	    frame, err := cam.WaitFrame(ctx)
//	    if err != nil {
//	        break
//	    }
//	    if err := uvccapture.AnyToRGB(frame, rgb); err != nil {
//	        continue
//	    }
//	    process(rgb) // rgb.Data is reused on the next call
//	}
//
// # Session lifecycle
//
//	Uninitialized --Init--> Initialized --StartStreaming--> Streaming
//	      ^                   |    ^                            |
//	      |                   |    +-------StopStreaming--------+
//	Deinitialized <--Deinit---+
//
// Deinit while streaming returns ErrStreaming; stop first. Deinit wakes any
// consumer blocked in PollFrame or WaitFrame. A Deinitialized camera can be
// initialized again.
//
// # Frame queue
//
// Frames are delivered in capture order. The queue is unbounded unless
// Config.MaxQueueDepth is set, in which case the oldest frame is dropped to
// admit a new one. ClearFrames discards everything queued (e.g. after
// warm-up or a long pause in the consumer).
//
// # Conversion
//
// YUYVToRGB, YUYVToBGR, UYVYToRGB and UYVYToBGR use BT.601 fixed-point
// coefficients with 14 fractional bits. The destination buffer is reused
// when its length already matches 3*Width*Height. On any error the
// destination is left untouched. Width must be even; rows may be padded
// (Frame.Step).
//
// # Transports
//
//   - v4l2: direct V4L2 mmap streaming (github.com/blackjack/webcam)
//   - gstreamer: v4l2src or videotestsrc through an appsink (requires gstreamer1.0 runtime)
//   - synthetic: moving colour bars, no hardware needed
package uvccapture
