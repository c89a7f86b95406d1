// SPDX-License-Identifier: EPL-2.0

// Package aiff decodes integer PCM AIFF files through github.com/go-audio/aiff.
// Readers that cannot seek are buffered in memory first.
package aiff
