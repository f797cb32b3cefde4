package codec

import (
	"bytes"
	"math"
	"testing"
)

// tone generates n samples of a sine wave at freq Hz, sampled at rate Hz.
func tone(freq, rate, n int, amplitude float64) []int16 {
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(amplitude * math.Sin(2*math.Pi*float64(freq)*float64(i)/float64(rate)))
	}
	return out
}

func zeroCrossings(samples []int16) int {
	count := 0
	for i := 1; i < len(samples); i++ {
		if (samples[i-1] < 0) != (samples[i] < 0) {
			count++
		}
	}
	return count
}

func TestEncodeForAgent_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"odd length", make([]byte, 161)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := EncodeForAgent(tt.input, 24000); len(got) != 0 {
				t.Errorf("expected empty result, got %d bytes", len(got))
			}
		})
	}
}

func TestDecodeForPhone_MalformedInput(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", []byte{}},
		{"nil", nil},
		{"odd length", make([]byte, 321)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DecodeForPhone(tt.input, 24000); len(got) != 0 {
				t.Errorf("expected empty result, got %d bytes", len(got))
			}
		})
	}
}

func TestEncodeForAgent_OutputLength(t *testing.T) {
	// 160 mu-law bytes = one 20ms Twilio frame at 8 kHz.
	frame := make([]byte, 160)

	tests := []struct {
		rate     int
		expected int // bytes: samples * rate ratio * 2
	}{
		{16000, 640},
		{24000, 960},
	}

	for _, tt := range tests {
		got := EncodeForAgent(frame, tt.rate)
		if len(got) != tt.expected {
			t.Errorf("rate %d: expected %d bytes, got %d", tt.rate, tt.expected, len(got))
		}
	}
}

func TestDecodeForPhone_OutputLength(t *testing.T) {
	// 960 bytes of 24 kHz PCM downsample to 160 mu-law bytes.
	pcm := make([]byte, 960)
	got := DecodeForPhone(pcm, 24000)
	if len(got) != 160 {
		t.Errorf("expected 160 mu-law bytes, got %d", len(got))
	}
}

func TestRoundTrip_Tone(t *testing.T) {
	for _, rate := range []int{16000, 24000} {
		original := tone(440, PhoneRate, 320, 12000)

		mulaw := make([]byte, len(original))
		for i, s := range original {
			mulaw[i] = linearToUlaw(s)
		}

		pcm := EncodeForAgent(mulaw, rate)
		back := DecodeForPhone(pcm, rate)

		if len(back) != len(mulaw) {
			t.Fatalf("rate %d: expected %d samples back, got %d", rate, len(mulaw), len(back))
		}

		// Peak error must stay under the companding quantization step for
		// this amplitude (segment step 512 at |s| ~12000).
		peak := 0
		recovered := make([]int16, len(back))
		for i, b := range back {
			recovered[i] = ulawToLinear(b)
			if d := int(recovered[i]) - int(original[i]); d > peak {
				peak = d
			} else if -d > peak {
				peak = -d
			}
		}
		if peak >= 512 {
			t.Errorf("rate %d: peak round-trip error %d, want < 512", rate, peak)
		}

		origZC := zeroCrossings(original)
		backZC := zeroCrossings(recovered)
		if diff := origZC - backZC; diff < -2 || diff > 2 {
			t.Errorf("rate %d: zero crossings diverged: original %d, recovered %d", rate, origZC, backZC)
		}
	}
}

func TestEncodeForAgent_Deterministic(t *testing.T) {
	frame := make([]byte, 160)
	for i := range frame {
		frame[i] = byte(i * 7)
	}

	first := EncodeForAgent(frame, 24000)
	second := EncodeForAgent(frame, 24000)

	if !bytes.Equal(first, second) {
		t.Error("expected identical output for identical input")
	}
}

func TestEncodeForAgent_NoCrossChunkState(t *testing.T) {
	a := make([]byte, 160)
	b := make([]byte, 160)
	for i := range a {
		a[i] = byte(i)
		b[i] = byte(255 - i)
	}

	// Converting other chunks in between must not change the result.
	before := EncodeForAgent(a, 24000)
	EncodeForAgent(b, 24000)
	EncodeForAgent(b, 16000)
	after := EncodeForAgent(a, 24000)

	if !bytes.Equal(before, after) {
		t.Error("conversion result changed after unrelated chunks were processed")
	}
}

func TestULaw_Codebook(t *testing.T) {
	// Every code except negative zero survives a decode/encode cycle.
	for b := 0; b < 256; b++ {
		code := byte(b)
		if code == 0x7F {
			continue
		}
		linear := ulawToLinear(code)
		if got := linearToUlaw(linear); got != code {
			t.Errorf("code %#02x: round trip gave %#02x (linear %d)", code, got, linear)
		}
	}

	// Negative zero decodes to silence.
	if got := ulawToLinear(0x7F); got != 0 {
		t.Errorf("expected 0x7F to decode to 0, got %d", got)
	}
}

func TestULaw_Extremes(t *testing.T) {
	if got := ulawToLinear(linearToUlaw(32767)); got < 31000 {
		t.Errorf("positive full scale decoded to %d", got)
	}
	if got := ulawToLinear(linearToUlaw(-32768)); got > -31000 {
		t.Errorf("negative full scale decoded to %d", got)
	}
	if got := ulawToLinear(linearToUlaw(0)); got != 0 {
		t.Errorf("silence decoded to %d", got)
	}
}

func TestResampleLinear_SameRate(t *testing.T) {
	in := []int16{1, 2, 3, 4}
	out := resampleLinear(in, 8000, 8000)
	if len(out) != 4 {
		t.Fatalf("expected 4 samples, got %d", len(out))
	}
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d: expected %d, got %d", i, in[i], out[i])
		}
	}
}

func TestResampleLinear_AlignedSamplesExact(t *testing.T) {
	// With an integer rate ratio the original sample positions land exactly
	// on input samples, so down-up or up-down recovers them.
	in := tone(440, PhoneRate, 160, 8000)
	up := resampleLinear(in, 8000, 24000)
	if len(up) != 480 {
		t.Fatalf("expected 480 samples, got %d", len(up))
	}
	down := resampleLinear(up, 24000, 8000)
	if len(down) != 160 {
		t.Fatalf("expected 160 samples, got %d", len(down))
	}
	for i := range in {
		if down[i] != in[i] {
			t.Fatalf("sample %d: expected %d after up/down, got %d", i, in[i], down[i])
		}
	}
}
