// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"bytes"
	"image"
	"image/draw"
	"image/jpeg"
	"sync/atomic"
)

const (
	frameAlign   = 32
	frameQuality = 80
)

// FrameMailbox holds the most recent encoded video frame. One writer, any
// number of readers.
type FrameMailbox struct {
	frame atomic.Pointer[[]byte]
}

// Publish replaces the held frame.
func (m *FrameMailbox) Publish(frame []byte) {
	m.frame.Store(&frame)
}

// Latest returns the held frame without removing it, or nil.
func (m *FrameMailbox) Latest() []byte {
	if p := m.frame.Load(); p != nil {
		return *p
	}
	return nil
}

// Take returns the held frame and empties the mailbox.
func (m *FrameMailbox) Take() []byte {
	if p := m.frame.Swap(nil); p != nil {
		return *p
	}
	return nil
}

func (m *FrameMailbox) Clear() { m.frame.Store(nil) }

func alignUp(n int) int {
	return (n + frameAlign - 1) / frameAlign * frameAlign
}

// EncodeFrame JPEG-encodes img at its native size, padded with black to a
// width and height that are multiples of 32.
func EncodeFrame(img image.Image) ([]byte, error) {
	b := img.Bounds()
	if b.Empty() {
		return nil, ErrEmptyFrame
	}
	w, h := alignUp(b.Dx()), alignUp(b.Dy())

	canvas := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(canvas, image.Rect(0, 0, b.Dx(), b.Dy()), img, b.Min, draw.Src)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, canvas, &jpeg.Options{Quality: frameQuality}); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}
