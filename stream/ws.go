// SPDX-License-Identifier: EPL-2.0

package stream

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ik5/spatialpbx/audio"
	"github.com/ik5/spatialpbx/utils"
	"github.com/rs/zerolog"
)

const (
	tagAudio = 'A'
	tagVideo = 'V'

	headerTimeout = 5 * time.Second
	// queueBlocks bounds how many audio messages may wait to be played.
	queueBlocks = 64
)

// Header is the first, text, message of a WebSocket stream.
type Header struct {
	SampleRate int `json:"sample_rate"`
	Channels   int `json:"channels"`
}

// wsSource plays PCM blocks as they arrive. A read with nothing queued
// returns (0, nil).
type wsSource struct {
	conn   *websocket.Conn
	header Header
	frames *FrameMailbox
	log    zerolog.Logger

	blocks  chan []float32
	pending []float32

	mu      sync.Mutex
	err     error
	closing atomic.Bool
	wg      sync.WaitGroup
	once    sync.Once
}

func openWebSocket(ctx context.Context, u *url.URL, opts Options) (audio.Source, error) {
	conn, _, err := opts.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Redacted(), err)
	}

	deadline := time.Now().Add(headerTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetReadDeadline(deadline)

	h, err := readHeader(conn)
	if err != nil {
		conn.Close()
		return nil, err
	}
	_ = conn.SetReadDeadline(time.Time{})

	s := &wsSource{
		conn:   conn,
		header: h,
		frames: opts.Frames,
		log:    opts.Logger.With().Str("url", u.Redacted()).Logger(),
		blocks: make(chan []float32, queueBlocks),
	}
	s.wg.Add(1)
	go s.receive()

	s.log.Debug().Int("sample_rate", h.SampleRate).Int("channels", h.Channels).Msg("websocket stream opened")
	return s, nil
}

func readHeader(conn *websocket.Conn) (Header, error) {
	var h Header

	kind, data, err := conn.ReadMessage()
	if err != nil {
		return h, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if kind != websocket.TextMessage {
		return h, fmt.Errorf("%w: first message is not text", ErrBadHeader)
	}
	if err := json.Unmarshal(data, &h); err != nil {
		return h, fmt.Errorf("%w: %w", ErrBadHeader, err)
	}
	if h.SampleRate <= 0 || h.Channels <= 0 {
		return h, fmt.Errorf("%w: %d Hz %d ch", ErrBadHeader, h.SampleRate, h.Channels)
	}
	return h, nil
}

func (s *wsSource) receive() {
	defer s.wg.Done()
	defer close(s.blocks)

	for {
		kind, data, err := s.conn.ReadMessage()
		if err != nil {
			if !s.closing.Load() && !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.setErr(err)
			}
			return
		}
		if kind != websocket.BinaryMessage || len(data) == 0 {
			continue
		}

		switch data[0] {
		case tagAudio:
			block := decodePCM16(data[1:], s.header.Channels)
			if len(block) == 0 {
				continue
			}
			select {
			case s.blocks <- block:
			default:
				s.log.Debug().Int("samples", len(block)).Msg("stream queue full, dropping audio")
			}
		case tagVideo:
			s.publishFrame(data[1:])
		}
	}
}

func (s *wsSource) publishFrame(data []byte) {
	if s.frames == nil {
		return
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		s.log.Debug().Err(err).Msg("undecodable video frame")
		return
	}
	frame, err := EncodeFrame(img)
	if err != nil {
		s.log.Debug().Err(err).Msg("video frame encode failed")
		return
	}
	s.frames.Publish(frame)
}

// decodePCM16 converts whole frames of s16le PCM.
func decodePCM16(data []byte, channels int) []float32 {
	n := len(data) / 2
	n -= n % channels
	out := make([]float32, n)
	for i := range out {
		out[i] = utils.Int16ToFloat32(int16(binary.LittleEndian.Uint16(data[2*i:])))
	}
	return out
}

func (s *wsSource) setErr(err error) {
	s.mu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.mu.Unlock()
}

func (s *wsSource) SampleRate() int { return s.header.SampleRate }
func (s *wsSource) Channels() int   { return s.header.Channels }
func (s *wsSource) BufSize() int    { return 4096 }

func (s *wsSource) ReadSamples(dst []float32) (int, error) {
	if len(dst)%s.header.Channels != 0 {
		return 0, fmt.Errorf("websocket stream: dst size %d not a multiple of %d channels", len(dst), s.header.Channels)
	}

	n := 0
	for n < len(dst) {
		if len(s.pending) == 0 {
			select {
			case block, ok := <-s.blocks:
				if !ok {
					if n > 0 {
						return n, nil
					}
					s.mu.Lock()
					err := s.err
					s.mu.Unlock()
					if err != nil {
						return 0, err
					}
					return 0, io.EOF
				}
				s.pending = block
			default:
				return n, nil
			}
		}
		c := copy(dst[n:], s.pending)
		s.pending = s.pending[c:]
		n += c
	}
	return n, nil
}

// Close hangs up and waits for the receiver to exit.
func (s *wsSource) Close() error {
	var err error
	s.once.Do(func() {
		s.closing.Store(true)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		err = s.conn.Close()
		s.wg.Wait()
	})
	return err
}
