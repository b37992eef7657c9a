package transcribe

import (
	"bytes"
	"errors"
	"math"
	"testing"
)

func sineSamples(n int, freq float64) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/targetSampleRate))
	}
	return out
}

func TestEncodeWAVRoundTrip(t *testing.T) {
	in := sineSamples(targetSampleRate/10, 440)

	encoded, err := encodeWAV(in)
	if err != nil {
		t.Fatalf("encodeWAV error: %v", err)
	}
	if !bytes.HasPrefix(encoded, []byte("RIFF")) {
		t.Fatal("expected RIFF header on encoded wav")
	}

	decoded, err := decodeToPCM16k(encoded, "wav")
	if err != nil {
		t.Fatalf("decodeToPCM16k error: %v", err)
	}
	if len(decoded) != len(in) {
		t.Fatalf("decoded %d samples, want %d", len(decoded), len(in))
	}

	for i := 0; i < len(in); i += 100 {
		if diff := math.Abs(float64(decoded[i] - in[i])); diff > 0.001 {
			t.Fatalf("sample %d drifted by %f", i, diff)
		}
	}
}

func TestDecodeSniffsWAVDespiteWrongHint(t *testing.T) {
	encoded, err := encodeWAV(sineSamples(1600, 220))
	if err != nil {
		t.Fatalf("encodeWAV error: %v", err)
	}

	if _, err := decodeToPCM16k(encoded, "mp3"); err != nil {
		t.Fatalf("expected magic sniff to win over hint, got %v", err)
	}
}

func TestDecodeRejectsEmptyPayload(t *testing.T) {
	if _, err := decodeToPCM16k(nil, "ogg"); err == nil {
		t.Fatal("expected error for empty payload")
	}
}

func TestDecodeRejectsUnknownFormat(t *testing.T) {
	_, err := decodeToPCM16k([]byte("not audio at all"), "flac")
	if !errors.Is(err, errUnsupportedFormat) {
		t.Fatalf("err = %v, want errUnsupportedFormat", err)
	}
}

func TestNormalizeHint(t *testing.T) {
	t.Parallel()

	cases := []struct {
		data []byte
		hint string
		want string
	}{
		{[]byte("RIFFxxxx"), "ogg", "wav"},
		{[]byte("OggSxxxx"), "", "ogg"},
		{[]byte("ID3\x04xx"), "", "mp3"},
		{[]byte("????"), ".oga", "ogg"},
		{[]byte("????"), "opus", "ogg"},
		{[]byte("????"), "WAVE", "wav"},
		{[]byte("????"), "mp3", "mp3"},
	}

	for _, tc := range cases {
		if got := normalizeHint(tc.data, tc.hint); got != tc.want {
			t.Fatalf("normalizeHint(%q, %q) = %q, want %q", tc.data[:4], tc.hint, got, tc.want)
		}
	}
}

func TestDownmixAndResample(t *testing.T) {
	t.Parallel()

	stereo := []float32{1, 0, 1, 0, 0, 1}
	mono := downmixInterleaved(stereo, 2)
	if len(mono) != 3 {
		t.Fatalf("len(mono) = %d, want 3", len(mono))
	}
	if mono[0] != 0.5 || mono[2] != 0.5 {
		t.Fatalf("downmix = %v, want averaged channels", mono)
	}

	up := resampleLinear([]float32{0, 1}, 8000, 16000)
	if len(up) != 4 {
		t.Fatalf("len(up) = %d, want 4", len(up))
	}
}
