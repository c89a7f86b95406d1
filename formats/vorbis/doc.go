// SPDX-License-Identifier: EPL-2.0

// Package vorbis adapts github.com/jfreymuth/oggvorbis to audio.Source.
// Samples come out of the decoder as interleaved float32 and are passed
// through unchanged.
package vorbis
