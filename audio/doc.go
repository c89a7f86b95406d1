// SPDX-License-Identifier: EPL-2.0

// Package audio provides the pull-based sample pipeline used by voices.
//
// Every stage implements Source and wraps another Source, so a voice chain
// reads like:
//
//	src := audio.NewLoopingSource(clip)   // optional, for looping categories
//	cnt := audio.NewCounter(src)          // progress for stall detection
//	res := audio.Convert(cnt, 48000)      // match the output device
//	mtr := audio.NewMeter(res)            // RMS / peak per block
//	gain := audio.NewGain(mtr, 1)         // distance attenuation × bus
//	pan := audio.NewPanner(gain)          // mono fold-down, stereo placement
//
// Samples are interleaved float32 in [-1, 1]. ReadSamples returns the number
// of float32 values written, never frames. io.EOF with n == 0 means the
// stream is finished; a live stream may answer (0, nil) when it has nothing
// buffered yet.
//
// # Seekable sources
//
// Decoded clips are held in a Buffer, which implements Seeker. Seekers have
// a known Len in frames, so Duration works on them and LoopingSource can
// rewind them.
//
// # Format registry
//
//	registry := audio.NewRegistry()
//	registry.Register("wav", wav.Decoder{})
//	decoder, _ := registry.Get(".WAV")
//
// Keys are case-insensitive and a leading dot is ignored, so a file
// extension can be passed directly.
package audio
