// Package audio provides PCM helpers and Opus framing for gateway playback.
//
// Text-to-speech providers deliver raw PCM at provider-specific sample rates.
// Browser clients receive Opus packets at a fixed 48 kHz mono, 20 ms frame
// size; FrameEncoder performs the resample, framing, and Opus encode.
package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// Playback uses 48 kHz mono Opus at 20 ms frame size.
const (
	SampleRate  = 48000
	Channels    = 1
	frameSizeMs = 20
	// FrameSize is the number of samples per channel per 20 ms frame.
	FrameSize = SampleRate * frameSizeMs / 1000 // 960
)

// Format describes the sample rate and channel count of a PCM stream.
type Format struct {
	SampleRate int
	Channels   int
}

// FrameEncoder converts incoming PCM chunks of a known source format into
// fixed-size Opus packets. Partial frames are buffered across Push calls.
// Create one per playback stream; not safe for concurrent use.
type FrameEncoder struct {
	enc    *gopus.Encoder
	source Format
	// pending holds mono 48 kHz samples that did not fill a whole frame yet.
	pending []int16
}

// NewFrameEncoder creates a FrameEncoder for PCM input in the given source
// format.
func NewFrameEncoder(source Format) (*FrameEncoder, error) {
	if source.SampleRate <= 0 || source.Channels < 1 || source.Channels > 2 {
		return nil, fmt.Errorf("audio: unsupported source format %d Hz / %d ch", source.SampleRate, source.Channels)
	}
	enc, err := gopus.NewEncoder(SampleRate, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &FrameEncoder{enc: enc, source: source}, nil
}

// Push consumes a chunk of little-endian int16 PCM in the source format and
// returns zero or more complete Opus packets.
func (e *FrameEncoder) Push(pcmBytes []byte) ([][]byte, error) {
	if len(pcmBytes)%2 != 0 {
		// Truncated sample at the tail; drop the odd byte.
		pcmBytes = pcmBytes[:len(pcmBytes)-1]
	}
	pcm := BytesToInt16s(pcmBytes)
	if e.source.Channels == 2 {
		pcm = stereoToMono(pcm)
	}
	if e.source.SampleRate != SampleRate {
		pcm = resampleMono(pcm, e.source.SampleRate, SampleRate)
	}
	e.pending = append(e.pending, pcm...)

	var packets [][]byte
	for len(e.pending) >= FrameSize {
		frame := e.pending[:FrameSize]
		packet, err := e.enc.Encode(frame, FrameSize, FrameSize*2)
		if err != nil {
			return packets, fmt.Errorf("audio: opus encode: %w", err)
		}
		packets = append(packets, packet)
		e.pending = e.pending[FrameSize:]
	}
	return packets, nil
}

// Flush zero-pads any buffered partial frame and returns the final Opus
// packet, or nil if nothing is pending.
func (e *FrameEncoder) Flush() ([]byte, error) {
	if len(e.pending) == 0 {
		return nil, nil
	}
	frame := make([]int16, FrameSize)
	copy(frame, e.pending)
	e.pending = e.pending[:0]
	packet, err := e.enc.Encode(frame, FrameSize, FrameSize*2)
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return packet, nil
}

// stereoToMono averages interleaved stereo samples into mono.
func stereoToMono(pcm []int16) []int16 {
	mono := make([]int16, len(pcm)/2)
	for i := range mono {
		mono[i] = int16((int32(pcm[i*2]) + int32(pcm[i*2+1])) / 2)
	}
	return mono
}

// resampleMono performs linear-interpolation resampling of mono int16 PCM.
func resampleMono(pcm []int16, from, to int) []int16 {
	if from == to || len(pcm) == 0 {
		return pcm
	}
	outLen := len(pcm) * to / from
	out := make([]int16, outLen)
	for i := range out {
		pos := float64(i) * float64(from) / float64(to)
		idx := int(pos)
		if idx >= len(pcm)-1 {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		frac := pos - float64(idx)
		a, b := float64(pcm[idx]), float64(pcm[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}

// Int16sToBytes converts int16 PCM samples to little-endian bytes.
func Int16sToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

// BytesToInt16s converts little-endian bytes to int16 PCM samples.
func BytesToInt16s(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}

// Drain reads from ch until it is closed, discarding all values. Use this to
// prevent goroutine leaks when the data on a streaming channel is not needed.
func Drain[T any](ch <-chan T) {
	for range ch {
	}
}
