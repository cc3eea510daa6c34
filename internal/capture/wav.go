package capture

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const MediaTypeWAV = "audio/wav"

// EncodeWAV wraps an audio/L16 blob in a WAV container.
func EncodeWAV(blob Blob) (Blob, error) {
	sampleRate, channels, ok := ParsePCM(blob.MediaType)
	if !ok {
		return Blob{}, fmt.Errorf("encode wav: unsupported media type %q", blob.MediaType)
	}

	// The wav encoder needs to seek back to patch chunk sizes.
	file, err := os.CreateTemp("", "scribe_capture_*.wav")
	if err != nil {
		return Blob{}, fmt.Errorf("temp file: %w", err)
	}
	defer os.Remove(file.Name())
	defer file.Close()

	if err := writePCMToWav(file, blob.Data, sampleRate, channels); err != nil {
		return Blob{}, err
	}
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return Blob{}, fmt.Errorf("rewind wav: %w", err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return Blob{}, fmt.Errorf("read wav: %w", err)
	}
	return Blob{Data: data, MediaType: MediaTypeWAV}, nil
}

func writePCMToWav(w io.WriteSeeker, pcm []byte, sampleRate int, channels int) error {
	if len(pcm)%2 != 0 {
		return fmt.Errorf("pcm payload not aligned")
	}
	buffer := &audio.IntBuffer{Format: &audio.Format{NumChannels: channels, SampleRate: sampleRate}, SourceBitDepth: 16}
	samples := make([]int, len(pcm)/2)
	for i := 0; i < len(samples); i++ {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}
	buffer.Data = samples

	enc := wav.NewEncoder(w, sampleRate, 16, channels, 1)
	if err := enc.Write(buffer); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav encoder: %w", err)
	}
	return nil
}
