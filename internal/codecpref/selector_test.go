package codecpref

import (
	"testing"

	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrder(t *testing.T) {
	testCases := []struct {
		name      string
		mimes     []string
		preferred string
		want      []string
	}{
		{
			name:      "rtx filtered and h264 promoted",
			mimes:     []string{"video/rtx", "video/vp8", "video/h264", "video/vp9"},
			preferred: "video/h264",
			want:      []string{"video/h264", "video/vp8", "video/vp9"},
		},
		{
			name:  "canonical order without preference",
			mimes: []string{"video/h264", "video/vp8"},
			want:  []string{"video/vp8", "video/h264"},
		},
		{
			name:      "absent preference is ignored",
			mimes:     []string{"video/h264", "video/vp8"},
			preferred: "video/av1",
			want:      []string{"video/vp8", "video/h264"},
		},
		{
			name:      "preference is case-insensitive",
			mimes:     []string{"video/VP8", "video/H264", "video/AV1"},
			preferred: "VIDEO/AV1",
			want:      []string{"video/av1", "video/vp8", "video/h264"},
		},
		{
			name: "all pseudo-codecs filtered",
			mimes: []string{
				"video/red", "video/ulpfec", "video/flexfec-03", "video/flexfec", "video/rtx", "video/VP9",
			},
			want: []string{"video/vp9"},
		},
		{
			name:  "duplicates collapse to first occurrence",
			mimes: []string{"video/H264", "video/h264", "video/VP8", "video/h264"},
			want:  []string{"video/vp8", "video/h264"},
		},
		{
			name:  "unknown codecs follow in discovery order",
			mimes: []string{"video/x-foo", "video/h265", "video/bar", "video/vp8"},
			want:  []string{"video/vp8", "video/h265", "video/x-foo", "video/bar"},
		},
		{
			name:      "non-canonical preference moves only itself",
			mimes:     []string{"video/x-foo", "video/h265", "video/bar", "video/vp8"},
			preferred: "video/bar",
			want:      []string{"video/bar", "video/vp8", "video/h265", "video/x-foo"},
		},
		{
			name:  "empty input",
			mimes: nil,
			want:  []string{},
		},
		{
			name:  "malformed identifiers dropped",
			mimes: []string{"", "vp8", "video/", "video/vp8"},
			want:  []string{"video/vp8"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Order(tc.mimes, tc.preferred))
		})
	}
}

func TestOrderDeterministic(t *testing.T) {
	mimes := []string{"video/h265", "video/rtx", "video/AV1", "video/x-custom", "video/vp9", "video/H264", "video/vp8"}

	first := Order(mimes, "video/vp9")
	for i := 0; i < 100; i++ {
		require.Equal(t, first, Order(mimes, "video/vp9"))
	}
	assert.Equal(t, []string{"video/vp9", "video/vp8", "video/av1", "video/h264", "video/h265", "video/x-custom"}, first)
}

func TestOrderDoesNotModifyInput(t *testing.T) {
	mimes := []string{"video/H264", "video/VP8"}
	_ = Order(mimes, "video/vp8")
	assert.Equal(t, []string{"video/H264", "video/VP8"}, mimes)
}

func TestSelectAndExpand(t *testing.T) {
	codecs := []webrtc.RTPCodecParameters{
		{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, SDPFmtpLine: "profile-level-id=42001f"}, PayloadType: 102},
		{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeRTX, SDPFmtpLine: "apt=102"}, PayloadType: 103},
		{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8}, PayloadType: 96},
		{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264, SDPFmtpLine: "profile-level-id=42e01f"}, PayloadType: 104},
	}

	order := Select(codecs, "")
	require.Equal(t, []string{"video/vp8", "video/h264"}, order)

	expanded := Expand(codecs, Select(codecs, "video/h264"))
	require.Len(t, expanded, 3)
	assert.Equal(t, webrtc.PayloadType(102), expanded[0].PayloadType)
	assert.Equal(t, webrtc.PayloadType(104), expanded[1].PayloadType)
	assert.Equal(t, webrtc.PayloadType(96), expanded[2].PayloadType)
}

func TestIsPrimary(t *testing.T) {
	assert.True(t, IsPrimary("video/VP8"))
	assert.True(t, IsPrimary("audio/opus"))
	assert.False(t, IsPrimary("video/rtx"))
	assert.False(t, IsPrimary("video/flexfec-03"))
	assert.False(t, IsPrimary("audio/red"))
	assert.False(t, IsPrimary("video"))
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "VP8", Label("video/VP8"))
	assert.Equal(t, "H265", Label("video/hevc"))
	assert.Equal(t, "H265", Label("video/H265"))
	assert.Equal(t, "X-CUSTOM", Label("video/x-custom"))
}

func TestDefaultPreference(t *testing.T) {
	ordered := []string{"video/vp8", "video/vp9", "video/h264"}

	assert.Equal(t, "video/vp9", DefaultPreference(ordered, "VIDEO/VP9"))
	assert.Equal(t, "video/h264", DefaultPreference(ordered, "video/av1"))
	assert.Equal(t, "video/vp8", DefaultPreference([]string{"video/vp8", "video/vp9"}, ""))
	assert.Equal(t, "", DefaultPreference(nil, ""))
}
