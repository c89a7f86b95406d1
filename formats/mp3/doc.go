// SPDX-License-Identifier: EPL-2.0

// Package mp3 adapts github.com/hajimehoshi/go-mp3 to audio.Source.
//
// The decoder always yields stereo 16-bit PCM, which is converted to
// float32 in [-1, 1). Mono files are therefore reported as two identical
// channels.
package mp3
