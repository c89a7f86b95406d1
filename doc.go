// SPDX-License-Identifier: EPL-2.0

// Package spatialpbx is a position aware playback engine for shared virtual
// scenes.
//
// Voice lines, ambient loops, combat sounds and live streams are attached to
// moving emitters. Their volume and stereo pan follow the listener's camera
// and the emitters' positions while they play.
//
// # Quick Start
//
//	engine, err := spatialpbx.Open("spatialpbx.yaml", listener)
//	if err != nil {
//		return err
//	}
//	defer engine.Close()
//
//	engine.Director().PlayAudio(npc, "lines/greeting.mp3", spatial.OtherVoice, 0, 0)
//
// Open loads the configuration (see package config), builds the logger and
// a director.Director, starts its update loop and applies volume bus changes
// from the config file while running.
//
// # Packages
//
//   - audio: the pull based sample pipeline and its stages
//   - formats: WAV, MP3, Ogg Vorbis and AIFF decoders
//   - spatial: geometry, categories and the volume model
//   - backend: output devices (oto, portaudio, PulseAudio, beep, null)
//   - stream: HTTP and WebSocket live streams and video frames
//   - voice: one playing emitter
//   - director: every voice of a scene
//   - events: error, stop and level notifications
//   - config: viper configuration and zerolog setup
package spatialpbx
