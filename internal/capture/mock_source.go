package capture

import (
	"context"
	"encoding/binary"
	"math"
	"sync"
	"time"
)

type mockSource struct {
	sampleRate int
	channels   int
	frame      time.Duration
}

// NewMockSource returns a microphone that produces a 440 Hz tone, one frame
// every frameMS milliseconds, until closed.
func NewMockSource(sampleRate, channels, frameMS int) Source {
	return &mockSource{
		sampleRate: sampleRate,
		channels:   channels,
		frame:      time.Duration(frameMS) * time.Millisecond,
	}
}

func (m *mockSource) MediaType() string {
	return PCMMediaType(m.sampleRate, m.channels)
}

func (m *mockSource) Open(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &mockStream{
		chunks: make(chan []byte, 4),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.run(m)
	return s, nil
}

type mockStream struct {
	chunks chan []byte
	stop   chan struct{}
	done   chan struct{}
	once   sync.Once
}

func (s *mockStream) Chunks() <-chan []byte { return s.chunks }

func (s *mockStream) Err() error { return nil }

func (s *mockStream) Close() error {
	s.once.Do(func() { close(s.stop) })
	<-s.done
	return nil
}

func (s *mockStream) run(m *mockSource) {
	defer close(s.done)
	defer close(s.chunks)

	frameSamples := frameBytes(m.sampleRate, m.channels, int(m.frame/time.Millisecond)) / 2
	ticker := time.NewTicker(m.frame)
	defer ticker.Stop()

	var offset int
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}
		pcm := make([]byte, frameSamples*2)
		for i := 0; i < frameSamples; i++ {
			t := float64((offset+i)/m.channels) / float64(m.sampleRate)
			sample := int16(math.Sin(2*math.Pi*440*t) * 8000)
			binary.LittleEndian.PutUint16(pcm[i*2:], uint16(sample))
		}
		offset += frameSamples
		select {
		case s.chunks <- pcm:
		case <-s.stop:
			return
		}
	}
}
