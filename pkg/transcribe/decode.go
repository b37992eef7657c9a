package transcribe

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strings"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// target format for the speech model: mono PCM at 16 kHz.
const targetSampleRate = 16000

var errUnsupportedFormat = errors.New("unsupported audio format")

// decodeToPCM16k decodes a supported container to mono 16 kHz samples.
//
// The hint is a lowercase extension-style name ("ogg", "mp3", "wav"); when
// it is missing or wrong the container magic is sniffed instead.
func decodeToPCM16k(data []byte, hint string) ([]float32, error) {
	if len(data) == 0 {
		return nil, errors.New("empty audio payload")
	}

	switch normalizeHint(data, hint) {
	case "wav":
		return decodeWAV(data)
	case "mp3":
		return decodeMP3(data)
	case "ogg":
		return decodeOggVorbis(data)
	default:
		return nil, fmt.Errorf("%w (hint %q)", errUnsupportedFormat, hint)
	}
}

// normalizeHint resolves the effective container name, preferring the header
// magic over the caller-provided hint.
func normalizeHint(data []byte, hint string) string {
	if len(data) >= 4 {
		switch {
		case bytes.Equal(data[:4], []byte("RIFF")):
			return "wav"
		case bytes.Equal(data[:4], []byte("OggS")):
			return "ogg"
		case bytes.Equal(data[:3], []byte("ID3")), data[0] == 0xFF && data[1]&0xE0 == 0xE0:
			return "mp3"
		}
	}

	hint = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(hint), "."))
	switch hint {
	case "oga", "opus":
		return "ogg"
	case "wave":
		return "wav"
	}
	return hint
}

func decodeWAV(data []byte) ([]float32, error) {
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav payload")
	}

	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	if pb == nil || len(pb.Data) == 0 {
		return nil, errors.New("empty wav payload")
	}

	bitDepth := int(dec.BitDepth)
	if bitDepth == 0 {
		bitDepth = 16
	}
	samples := intSliceToFloat32(pb.Data, bitDepth)

	channels := 1
	sampleRate := 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			channels = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			sampleRate = pb.Format.SampleRate
		}
	}

	return toMono16k(samples, channels, sampleRate), nil
}

func decodeMP3(data []byte) ([]float32, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode mp3: %w", err)
	}

	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return nil, fmt.Errorf("read mp3 stream: %w", err)
	}

	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return nil, fmt.Errorf("read mp3 samples: %w", err)
	}

	samples := int16SliceToFloat32(ints)

	sampleRate := dec.SampleRate()
	if sampleRate <= 0 {
		sampleRate = 44100
	}

	// The mp3 decoder always emits interleaved stereo.
	return toMono16k(samples, 2, sampleRate), nil
}

func decodeOggVorbis(data []byte) ([]float32, error) {
	pcm, format, err := oggvorbis.ReadAll(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode ogg/vorbis: %w", err)
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return nil, errors.New("invalid ogg/vorbis stream")
	}

	return toMono16k(pcm, format.Channels, format.SampleRate), nil
}

// encodeWAV writes mono 16 kHz samples as a 16-bit WAV and returns the bytes.
//
// The encoder needs a seekable target, so a temp file is used and removed on
// every path out of this function.
func encodeWAV(samples []float32) ([]byte, error) {
	if len(samples) == 0 {
		return nil, errors.New("no samples to encode")
	}

	tmp, err := os.CreateTemp("", "walle-voice-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer func() {
		tmp.Close()
		os.Remove(tmp.Name())
	}()

	ints := make([]int, len(samples))
	for i, sample := range samples {
		ints[i] = int(clamp(float64(sample), -1.0, 1.0) * 32767.0)
	}

	enc := wav.NewEncoder(tmp, targetSampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: targetSampleRate},
		Data:           ints,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return nil, fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("finalize wav: %w", err)
	}

	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewind temp wav: %w", err)
	}

	out, err := io.ReadAll(tmp)
	if err != nil {
		return nil, fmt.Errorf("read temp wav: %w", err)
	}

	return out, nil
}

func toMono16k(samples []float32, channels int, sampleRate int) []float32 {
	if channels > 1 {
		samples = downmixInterleaved(samples, channels)
	}
	if sampleRate != targetSampleRate {
		samples = resampleLinear(samples, sampleRate, targetSampleRate)
	}
	return samples
}

func intSliceToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

func downmixInterleaved(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}

	frames := len(in) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		base := i * channels
		for c := 0; c < channels; c++ {
			sum += float64(in[base+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

func resampleLinear(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 {
		return in
	}

	ratio := float64(outRate) / float64(inRate)
	outN := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, outN)
	for i := 0; i < outN; i++ {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		i1 := i0 + 1
		if i0 >= len(in) {
			out[i] = in[len(in)-1]
			continue
		}
		if i1 >= len(in) {
			out[i] = in[i0]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
