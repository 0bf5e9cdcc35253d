package rtc

import (
	"strconv"

	"github.com/pion/webrtc/v4"
)

type codecEntry struct {
	kind   webrtc.RTPCodecType
	params webrtc.RTPCodecParameters
}

var videoFeedback = []webrtc.RTCPFeedback{
	{Type: "goog-remb"},
	{Type: "ccm", Parameter: "fir"},
	{Type: "nack"},
	{Type: "nack", Parameter: "pli"},
}

func video(mime string, pt webrtc.PayloadType, fmtp string) codecEntry {
	return codecEntry{
		kind: webrtc.RTPCodecTypeVideo,
		params: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:     mime,
				ClockRate:    90000,
				SDPFmtpLine:  fmtp,
				RTCPFeedback: videoFeedback,
			},
			PayloadType: pt,
		},
	}
}

func rtx(pt, apt webrtc.PayloadType) codecEntry {
	return codecEntry{
		kind: webrtc.RTPCodecTypeVideo,
		params: webrtc.RTPCodecParameters{
			RTPCodecCapability: webrtc.RTPCodecCapability{
				MimeType:    webrtc.MimeTypeRTX,
				ClockRate:   90000,
				SDPFmtpLine: "apt=" + strconv.Itoa(int(apt)),
			},
			PayloadType: pt,
		},
	}
}

// defaultCodecs is the registration table. The order here is the discovery
// order seen by the codec selector; rtx entries are filtered out there.
func defaultCodecs() []codecEntry {
	return []codecEntry{
		{
			kind: webrtc.RTPCodecTypeAudio,
			params: webrtc.RTPCodecParameters{
				RTPCodecCapability: webrtc.RTPCodecCapability{
					MimeType:    webrtc.MimeTypeOpus,
					ClockRate:   48000,
					Channels:    2,
					SDPFmtpLine: "minptime=10;useinbandfec=1",
				},
				PayloadType: 111,
			},
		},

		video(webrtc.MimeTypeVP8, 96, ""),
		rtx(97, 96),
		video(webrtc.MimeTypeVP9, 98, "profile-id=0"),
		rtx(99, 98),
		video(webrtc.MimeTypeH264, 102, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42001f"),
		rtx(103, 102),
		video(webrtc.MimeTypeH264, 104, "level-asymmetry-allowed=1;packetization-mode=1;profile-level-id=42e01f"),
		rtx(105, 104),
		video(webrtc.MimeTypeAV1, 45, ""),
		rtx(46, 45),
		video(webrtc.MimeTypeH265, 49, ""),
		rtx(50, 49),
	}
}
