// SPDX-License-Identifier: EPL-2.0

package spatial

import (
	"fmt"
	"strings"
	"time"
)

// Category classifies a playback request.
type Category int

const (
	MainVoice Category = iota
	MainTts
	OtherVoice
	OtherTts
	Emote
	CombatSelf
	CombatOther
	AmbientLoop
	AmbientLoopWhileMoving
	LoopUntilStopped
	LiveStream
	NpcLine
	ChatSound
)

// PromotionThreshold is the clip length past which a non-exempt category is
// played as AmbientLoop.
const PromotionThreshold = 13 * time.Second

var categoryNames = [...]string{
	MainVoice:              "MainVoice",
	MainTts:                "MainTts",
	OtherVoice:             "OtherVoice",
	OtherTts:               "OtherTts",
	Emote:                  "Emote",
	CombatSelf:             "CombatSelf",
	CombatOther:            "CombatOther",
	AmbientLoop:            "AmbientLoop",
	AmbientLoopWhileMoving: "AmbientLoopWhileMoving",
	LoopUntilStopped:       "LoopUntilStopped",
	LiveStream:             "LiveStream",
	NpcLine:                "NpcLine",
	ChatSound:              "ChatSound",
}

func (c Category) String() string {
	if c < 0 || int(c) >= len(categoryNames) {
		return fmt.Sprintf("Category(%d)", int(c))
	}
	return categoryNames[c]
}

// ParseCategory maps a case-insensitive category name back to its value.
func ParseCategory(s string) (Category, error) {
	for i, name := range categoryNames {
		if strings.EqualFold(name, s) {
			return Category(i), nil
		}
	}
	return 0, fmt.Errorf("unknown playback category %q", s)
}

// IsLooping reports whether the category plays through a LoopingSource.
func (c Category) IsLooping() bool {
	switch c {
	case AmbientLoop, AmbientLoopWhileMoving, LoopUntilStopped:
		return true
	}
	return false
}

// IsCombat reports whether the category needs a low latency output.
func (c Category) IsCombat() bool {
	return c == CombatSelf || c == CombatOther
}

// IsSpeech reports whether requests of this category go to the speech
// collection.
func (c Category) IsSpeech() bool {
	switch c {
	case MainTts, OtherTts, NpcLine:
		return true
	}
	return false
}

// PromotionExempt reports whether a long clip of this category keeps its
// category instead of being promoted to AmbientLoop.
func (c Category) PromotionExempt() bool {
	switch c {
	case MainTts, OtherTts, CombatSelf, CombatOther, LiveStream, NpcLine:
		return true
	}
	return c.IsLooping()
}

// Promote returns the category a clip of the given length plays as.
func (c Category) Promote(length time.Duration) Category {
	if length > PromotionThreshold && !c.PromotionExempt() {
		return AmbientLoop
	}
	return c
}
