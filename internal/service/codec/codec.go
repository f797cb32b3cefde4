// Package codec converts audio between the telephony leg's G.711 mu-law
// format (8 kHz, 8-bit companded) and the agent leg's 16-bit linear PCM at
// a higher sample rate. All functions are pure and stateless: each chunk is
// converted independently, with no filter memory carried between calls.
package codec

import (
	"encoding/binary"
	"math"
)

// PhoneRate is the telephony leg's fixed sample rate.
const PhoneRate = 8000

const (
	ulawBias = 0x84
	ulawClip = 32635
)

// EncodeForAgent decodes mu-law bytes to signed 16-bit little-endian PCM and
// resamples from 8 kHz to agentRate. Malformed input (zero or odd byte
// length) yields an empty result; one corrupt frame must not abort a call.
func EncodeForAgent(mulaw []byte, agentRate int) []byte {
	if len(mulaw) == 0 || len(mulaw)%2 != 0 {
		return nil
	}
	samples := make([]int16, len(mulaw))
	for i, b := range mulaw {
		samples[i] = ulawToLinear(b)
	}
	return packPCM(resampleLinear(samples, PhoneRate, agentRate))
}

// DecodeForPhone resamples 16-bit little-endian PCM from agentRate down to
// 8 kHz and compands it to mu-law. Malformed input (zero or odd byte length)
// yields an empty result.
func DecodeForPhone(pcm []byte, agentRate int) []byte {
	if len(pcm) == 0 || len(pcm)%2 != 0 {
		return nil
	}
	samples := unpackPCM(pcm)
	resampled := resampleLinear(samples, agentRate, PhoneRate)
	out := make([]byte, len(resampled))
	for i, s := range resampled {
		out[i] = linearToUlaw(s)
	}
	return out
}

// ulawToLinear expands one G.711 mu-law byte to a linear sample.
func ulawToLinear(u byte) int16 {
	u = ^u
	sign := u & 0x80
	exp := (u >> 4) & 0x07
	mant := u & 0x0F
	value := (int(mant) << 3) + ulawBias
	value <<= uint(exp)
	value -= ulawBias
	if sign != 0 {
		return int16(-value)
	}
	return int16(value)
}

// linearToUlaw compands one linear sample to a G.711 mu-law byte.
func linearToUlaw(pcm int16) byte {
	var sign byte
	s := int32(pcm)
	if s < 0 {
		s = -s
		sign = 0x80
	}
	if s > ulawClip {
		s = ulawClip
	}
	s += ulawBias
	exp := uint(7)
	for mask := int32(0x4000); mask != 0 && s&mask == 0; mask >>= 1 {
		exp--
	}
	mant := byte((s >> (exp + 3)) & 0x0F)
	return ^(sign | byte(exp)<<4 | mant)
}

// resampleLinear converts between sample rates by linear interpolation.
// The output length is the input length scaled by the rate ratio, rounded.
func resampleLinear(in []int16, inRate, outRate int) []int16 {
	if inRate == outRate || len(in) == 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	outLen := int(math.Round(float64(len(in)) * ratio))
	if outLen == 0 {
		return nil
	}
	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) * float64(inRate) / float64(outRate)
		i0 := int(srcPos)
		if i0 >= len(in) {
			i0 = len(in) - 1
		}
		i1 := i0 + 1
		if i1 >= len(in) {
			i1 = len(in) - 1
		}
		f := srcPos - float64(i0)
		v := float64(in[i0])*(1-f) + float64(in[i1])*f
		if v > math.MaxInt16 {
			v = math.MaxInt16
		}
		if v < math.MinInt16 {
			v = math.MinInt16
		}
		out[i] = int16(v)
	}
	return out
}

func packPCM(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func unpackPCM(pcm []byte) []int16 {
	samples := make([]int16, len(pcm)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
	}
	return samples
}
