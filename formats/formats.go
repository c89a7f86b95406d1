// SPDX-License-Identifier: EPL-2.0

// Package formats wires every bundled decoder into an audio.Registry and
// loads clips from disk.
package formats

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/formats/aiff"
	"github.com/ik5/spatialpbx/formats/mp3"
	"github.com/ik5/spatialpbx/formats/vorbis"
	"github.com/ik5/spatialpbx/formats/wav"
)

var ErrUnknownFormat = errors.New("unknown audio format")

// NewRegistry returns a registry with wav, mp3, ogg and aiff decoders.
func NewRegistry() *audio.Registry {
	r := audio.NewRegistry()
	r.Register("wav", wav.Decoder{})
	r.Register("mp3", mp3.Decoder{})
	r.Register("ogg", vorbis.Decoder{})
	r.Register("oga", vorbis.Decoder{})
	r.Register("aif", aiff.Decoder{})
	r.Register("aiff", aiff.Decoder{})
	return r
}

var defaultRegistry = NewRegistry()

// Default returns the shared registry used by DecodeFile.
func Default() *audio.Registry { return defaultRegistry }

// Open decodes path as a stream, picking the decoder by file extension.
// The returned source owns the file.
func Open(reg *audio.Registry, path string) (audio.Source, error) {
	ext := filepath.Ext(path)
	dec, ok := reg.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}

	src, err := dec.Decode(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return src, nil
}

// DecodeFile fully decodes path into memory with the default registry.
func DecodeFile(path string) (*audio.Buffer, error) {
	src, err := Open(defaultRegistry, path)
	if err != nil {
		return nil, err
	}
	return audio.ReadAll(src)
}

// Decode fully decodes r, choosing the decoder by format key.
func Decode(reg *audio.Registry, format string, r io.Reader) (*audio.Buffer, error) {
	dec, ok := reg.Get(format)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	src, err := dec.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w", err)
	}
	return audio.ReadAll(src)
}
