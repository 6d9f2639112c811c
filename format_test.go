package uvccapture

import "testing"

func TestParseColorFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    ColorFormat
		wantErr bool
	}{
		{"YUYV", ColorFormatYUYV, false},
		{"yuy2", ColorFormatYUYV, false},
		{"YUYV 4:2:2", ColorFormatYUYV, false},
		{"uyvy", ColorFormatUYVY, false},
		{"RGB", ColorFormatRGB, false},
		{"RGB3", ColorFormatRGB, false},
		{"rgb24", ColorFormatRGB, false},
		{"bgr", ColorFormatBGR, false},
		{"BGR3", ColorFormatBGR, false},
		{"MJPG", ColorFormatMJPEG, false},
		{"Motion-JPEG", ColorFormatMJPEG, false},
		{"GREY", ColorFormatGray8, false},
		{" gray8 ", ColorFormatGray8, false},
		{"", ColorFormatUnknown, true},
		{"H264", ColorFormatUnknown, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseColorFormat(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseColorFormat(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseColorFormat(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestColorFormatRoundTrip(t *testing.T) {
	for _, f := range []ColorFormat{ColorFormatYUYV, ColorFormatUYVY, ColorFormatRGB, ColorFormatBGR, ColorFormatMJPEG, ColorFormatGray8} {
		t.Run(f.String(), func(t *testing.T) {
			code, err := FourCCCode(f.FourCC())
			if err != nil {
				t.Fatalf("FourCCCode(%q) error = %v", f.FourCC(), err)
			}
			if got := ColorFormatFromFourCC(code); got != f {
				t.Errorf("ColorFormatFromFourCC(%#x) = %s, want %s", code, got, f)
			}
			if parsed, err := ParseColorFormat(f.String()); err != nil || parsed != f {
				t.Errorf("ParseColorFormat(%q) = %s, %v", f.String(), parsed, err)
			}
		})
	}
}

func TestColorFormatProperties(t *testing.T) {
	if ColorFormatYUYV.GStreamerFormat() != "YUY2" {
		t.Errorf("YUYV GStreamer name = %q", ColorFormatYUYV.GStreamerFormat())
	}
	if ColorFormatMJPEG.GStreamerFormat() != "" {
		t.Error("MJPEG should have no raw GStreamer format")
	}
	if ColorFormatUYVY.BytesPerPixel() != 2 || ColorFormatBGR.BytesPerPixel() != 3 || ColorFormatMJPEG.BytesPerPixel() != 0 {
		t.Error("unexpected BytesPerPixel")
	}
	if !ColorFormatUYVY.IsPackedYUV() || ColorFormatRGB.IsPackedYUV() {
		t.Error("unexpected IsPackedYUV")
	}
	if ColorFormatUnknown.String() != "unknown" || ColorFormatUnknown.FourCC() != "" {
		t.Error("unknown format should have no names")
	}
	if _, err := FourCCCode("YUV"); err == nil {
		t.Error("FourCCCode accepted a 3-character code")
	}
	if ColorFormatFromFourCC(0x34363248) != ColorFormatUnknown { // "H264"
		t.Error("H264 mapped to a known format")
	}
}

func TestParsePollMode(t *testing.T) {
	tests := []struct {
		input   string
		want    PollMode
		wantErr bool
	}{
		{"", PollNonBlocking, false},
		{"non-blocking", PollNonBlocking, false},
		{"poll", PollNonBlocking, false},
		{"blocking", PollBlocking, false},
		{"wait", PollBlocking, false},
		{"sometimes", PollNonBlocking, true},
	}

	for _, tt := range tests {
		got, err := ParsePollMode(tt.input)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParsePollMode(%q) = %s, %v", tt.input, got, err)
		}
	}
}
