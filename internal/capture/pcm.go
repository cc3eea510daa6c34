package capture

import (
	"fmt"
	"mime"
	"strconv"
	"strings"
)

const mediaTypeL16 = "audio/l16"

// PCMMediaType names raw signed 16-bit PCM. Samples are little-endian, as
// arecord -f S16_LE produces them.
func PCMMediaType(sampleRate, channels int) string {
	return fmt.Sprintf("audio/L16;rate=%d;channels=%d", sampleRate, channels)
}

// ParsePCM reports the sample rate and channel count of an audio/L16 media type.
func ParsePCM(mediaType string) (sampleRate, channels int, ok bool) {
	base, params, err := mime.ParseMediaType(mediaType)
	if err != nil || base != mediaTypeL16 {
		return 0, 0, false
	}
	sampleRate, err = strconv.Atoi(params["rate"])
	if err != nil || sampleRate <= 0 {
		return 0, 0, false
	}
	channels = 1
	if v, found := params["channels"]; found {
		channels, err = strconv.Atoi(v)
		if err != nil || channels <= 0 {
			return 0, 0, false
		}
	}
	return sampleRate, channels, true
}

// Extension picks a file extension for uploads of mediaType.
func Extension(mediaType string) string {
	base, _, err := mime.ParseMediaType(mediaType)
	if err != nil {
		return ".bin"
	}
	switch base {
	case mediaTypeL16:
		return ".raw"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/webm":
		return ".webm"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	case "audio/mpeg":
		return ".mp3"
	}
	if i := strings.IndexByte(base, '/'); i >= 0 && i < len(base)-1 {
		return "." + base[i+1:]
	}
	return ".bin"
}

func frameBytes(sampleRate, channels, frameMS int) int {
	n := sampleRate * channels * 2 * frameMS / 1000
	if n < 2 {
		n = 2
	}
	return n - n%2
}
