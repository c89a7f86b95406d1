// SPDX-License-Identifier: EPL-2.0

// Package wav decodes integer PCM WAV files into audio sources and writes
// 16-bit PCM WAV.
//
// Decoding goes through github.com/go-audio/wav, so chunk walking, extensible
// format headers and 16/24/32-bit depths are handled there. Readers that
// cannot seek are buffered in memory first.
//
//	src, err := wav.Decoder{}.Decode(file)
//
// WriteWAV16 produces a canonical 44-byte header followed by little-endian
// samples; it only needs an io.Writer.
package wav
