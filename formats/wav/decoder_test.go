// SPDX-License-Identifier: EPL-2.0

package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

type chunk struct {
	id   string
	data []byte
}

// buildWAV assembles a RIFF/WAVE file from chunks, padding odd sizes.
func buildWAV(chunks ...chunk) []byte {
	body := new(bytes.Buffer)
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.WriteString(c.id)
		binary.Write(body, binary.LittleEndian, uint32(len(c.data)))
		body.Write(c.data)
		if len(c.data)%2 == 1 {
			body.WriteByte(0)
		}
	}

	out := new(bytes.Buffer)
	out.WriteString("RIFF")
	binary.Write(out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func fmtChunk(format uint16, channels, sampleRate, bits int) chunk {
	b := new(bytes.Buffer)
	blockAlign := channels * bits / 8
	binary.Write(b, binary.LittleEndian, format)
	binary.Write(b, binary.LittleEndian, uint16(channels))
	binary.Write(b, binary.LittleEndian, uint32(sampleRate))
	binary.Write(b, binary.LittleEndian, uint32(sampleRate*blockAlign))
	binary.Write(b, binary.LittleEndian, uint16(blockAlign))
	binary.Write(b, binary.LittleEndian, uint16(bits))
	return chunk{"fmt ", b.Bytes()}
}

func pcm16(samples ...int16) chunk {
	b := new(bytes.Buffer)
	binary.Write(b, binary.LittleEndian, samples)
	return chunk{"data", b.Bytes()}
}

func pcm24(samples ...int32) chunk {
	b := make([]byte, 0, len(samples)*3)
	for _, s := range samples {
		b = append(b, byte(s), byte(s>>8), byte(s>>16))
	}
	return chunk{"data", b}
}

func createWAVFile(sampleRate, channels int, samples []int16) []byte {
	buf := new(bytes.Buffer)
	_ = WriteWAV16(buf, sampleRate, channels, samples)
	return buf.Bytes()
}

func readAll(t *testing.T, data []byte) ([]float32, int, int) {
	t.Helper()

	src, err := Decoder{}.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	defer src.Close()

	var out []float32
	buf := make([]float32, 4*src.Channels())
	for {
		n, err := src.ReadSamples(buf)
		out = append(out, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("ReadSamples() error = %v", err)
		}
	}
	return out, src.SampleRate(), src.Channels()
}

func TestDecoder_Formats(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     []byte
		rate     int
		channels int
		want     []float32
	}{
		{
			name:     "mono 16 bit",
			data:     createWAVFile(8000, 1, []int16{0, 16384, -16384, -32768}),
			rate:     8000,
			channels: 1,
			want:     []float32{0, 0.5, -0.5, -1},
		},
		{
			name:     "stereo 16 bit",
			data:     createWAVFile(44100, 2, []int16{8192, -8192, 16384, -16384}),
			rate:     44100,
			channels: 2,
			want:     []float32{0.25, -0.25, 0.5, -0.5},
		},
		{
			name:     "mono 24 bit",
			data:     buildWAV(fmtChunk(formatPCM, 1, 48000, 24), pcm24(1<<22, -(1 << 22))),
			rate:     48000,
			channels: 1,
			want:     []float32{0.5, -0.5},
		},
		{
			name: "extra chunk before fmt",
			data: buildWAV(chunk{"junk", []byte{1, 2, 3, 4}}, fmtChunk(formatPCM, 1, 16000, 16),
				pcm16(100, 200)),
			rate:     16000,
			channels: 1,
			want:     []float32{100.0 / 32768, 200.0 / 32768},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, rate, channels := readAll(t, tt.data)
			if rate != tt.rate || channels != tt.channels {
				t.Errorf("format = %d Hz %d ch, want %d Hz %d ch", rate, channels, tt.rate, tt.channels)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d samples, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if math.Abs(float64(got[i]-tt.want[i])) > 1e-4 {
					t.Errorf("sample %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestDecoder_Rejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"not riff", []byte("NOT A WAV FILE DATA"), ErrNotWavFile},
		{"truncated", []byte("RIFF\x00"), ErrNotWavFile},
		{"8 bit", buildWAV(fmtChunk(formatPCM, 1, 8000, 8), chunk{"data", []byte{1, 2, 3, 4}}), ErrUnsupportedBitDepth},
		{"ieee float", buildWAV(fmtChunk(3, 1, 8000, 32), chunk{"data", make([]byte, 8)}), ErrUnsupportedEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := Decoder{}.Decode(bytes.NewReader(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestDecoder_NonSeekableReader(t *testing.T) {
	t.Parallel()

	data := createWAVFile(8000, 1, []int16{1, 2, 3})
	src, err := Decoder{}.Decode(io.MultiReader(bytes.NewReader(data)))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if src.SampleRate() != 8000 {
		t.Errorf("SampleRate() = %d, want 8000", src.SampleRate())
	}
}

func TestSource_EOFIsSticky(t *testing.T) {
	t.Parallel()

	src, err := Decoder{}.Decode(bytes.NewReader(createWAVFile(8000, 1, []int16{100, 200})))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	dst := make([]float32, 8)
	n, err := src.ReadSamples(dst)
	if n != 2 || (err != nil && err != io.EOF) {
		t.Fatalf("ReadSamples() = (%d, %v), want (2, nil|EOF)", n, err)
	}

	for range 2 {
		if n, err = src.ReadSamples(dst); n != 0 || err != io.EOF {
			t.Errorf("ReadSamples() after end = (%d, %v), want (0, io.EOF)", n, err)
		}
	}

	if n, err = src.ReadSamples(nil); n != 0 || err != io.EOF {
		t.Errorf("ReadSamples(nil) after end = (%d, %v), want (0, io.EOF)", n, err)
	}
}

func TestSource_InvalidDstSize(t *testing.T) {
	t.Parallel()

	src, err := Decoder{}.Decode(bytes.NewReader(createWAVFile(8000, 2, []int16{1, 2, 3, 4})))
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if _, err = src.ReadSamples(make([]float32, 3)); err == nil {
		t.Error("ReadSamples() error = nil for a partial frame buffer")
	}
}

func TestDecoder_WriteWAV16RoundTrip(t *testing.T) {
	t.Parallel()

	original := []int16{-1000, -500, 0, 500, 1000}
	buf := new(bytes.Buffer)
	if err := WriteWAV16(buf, 22050, 1, original); err != nil {
		t.Fatalf("WriteWAV16() error = %v", err)
	}

	got, rate, _ := readAll(t, buf.Bytes())
	if rate != 22050 {
		t.Errorf("rate = %d, want 22050", rate)
	}
	for i, s := range original {
		if back := int16(math.Round(float64(got[i]) * 32768)); back != s {
			t.Errorf("sample %d = %d, want %d", i, back, s)
		}
	}
}
