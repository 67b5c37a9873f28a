// Package rec captures the emulated audio stream to a WAV file.
package rec

import (
	"fmt"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// coreRate is the sample rate the APU emits pairs at (one per 4 T-cycles).
const coreRate = 1048576

// decimation is the fixed downsampling factor applied before encoding.
// 1 MiHz audio is pointless on disk; 32768 Hz keeps test ROM beeps intact.
const decimation = 32

// OutputRate is the sample rate of written WAV files.
const OutputRate = coreRate / decimation

// Recorder accumulates stereo float samples and writes a 16-bit WAV file.
type Recorder struct {
	file *os.File
	enc  *wav.Encoder

	// decimation accumulators
	accL, accR float64
	accN       int

	pcm []int
}

// NewRecorder creates a WAV recorder writing to path.
func NewRecorder(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("rec: %w", err)
	}
	return &Recorder{
		file: f,
		enc:  wav.NewEncoder(f, OutputRate, 16, 2, 1),
	}, nil
}

// Push consumes interleaved stereo samples in [-1, 1] as produced by the
// APU, averaging each decimation window down to one output frame.
func (r *Recorder) Push(samples []float32) {
	for i := 0; i+1 < len(samples); i += 2 {
		r.accL += float64(samples[i])
		r.accR += float64(samples[i+1])
		r.accN++
		if r.accN == decimation {
			r.pcm = append(r.pcm, toPCM(r.accL/decimation), toPCM(r.accR/decimation))
			r.accL, r.accR, r.accN = 0, 0, 0
		}
	}
}

func toPCM(v float64) int {
	scaled := int(v * 32767)
	if scaled > 32767 {
		scaled = 32767
	} else if scaled < -32768 {
		scaled = -32768
	}
	return scaled
}

// Close flushes buffered samples and finalizes the WAV file.
func (r *Recorder) Close() error {
	if len(r.pcm) > 0 {
		buf := &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: 2, SampleRate: OutputRate},
			Data:           r.pcm,
			SourceBitDepth: 16,
		}
		if err := r.enc.Write(buf); err != nil {
			r.file.Close()
			return fmt.Errorf("rec: %w", err)
		}
		r.pcm = r.pcm[:0]
	}
	if err := r.enc.Close(); err != nil {
		r.file.Close()
		return fmt.Errorf("rec: %w", err)
	}
	return r.file.Close()
}
