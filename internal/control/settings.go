package control

import (
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/live-announcer/internal/speech"
)

// Settings holds the process-wide mute flag and voice selection. The queue
// reads Muted at enqueue time and the speaker reads Voice at dispatch time.
type Settings struct {
	muted atomic.Bool

	mu      sync.RWMutex
	catalog []speech.Voice
	voice   speech.Voice
	hooks   []func(Snapshot)
}

// Snapshot is a point-in-time copy of the settings.
type Snapshot struct {
	Muted bool
	Voice speech.Voice
}

// NewSettings returns unmuted settings with an empty catalog.
func NewSettings() *Settings {
	return &Settings{}
}

// Muted implements announce.MuteState.
func (s *Settings) Muted() bool {
	return s.muted.Load()
}

// SetMuted overwrites the mute flag. Pending announcements are kept.
func (s *Settings) SetMuted(muted bool) {
	if s.muted.Swap(muted) != muted {
		s.changed()
	}
}

// ToggleMute flips the mute flag and returns the new value.
func (s *Settings) ToggleMute() bool {
	for {
		old := s.muted.Load()
		if s.muted.CompareAndSwap(old, !old) {
			s.changed()
			return !old
		}
	}
}

// Voice implements speech.VoiceSource.
func (s *Settings) Voice() speech.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.voice
}

// Catalog returns the selectable voices.
func (s *Settings) Catalog() []speech.Voice {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]speech.Voice(nil), s.catalog...)
}

// SetCatalog replaces the selectable voices. The current selection is kept
// when it is still offered, otherwise the first voice is selected.
func (s *Settings) SetCatalog(voices []speech.Voice) {
	s.mu.Lock()
	s.catalog = append([]speech.Voice(nil), voices...)
	if indexOf(s.catalog, s.voice.ID) < 0 {
		s.voice = speech.Voice{}
		if len(s.catalog) > 0 {
			s.voice = s.catalog[0]
		}
	}
	s.mu.Unlock()
	s.changed()
}

// SetVoice selects the catalog voice matching query. IDs and names match
// exactly (ignoring case) before falling back to fuzzy matching.
func (s *Settings) SetVoice(query string) (speech.Voice, error) {
	s.mu.Lock()
	v, err := match(s.catalog, query)
	if err == nil {
		s.voice = v
	}
	s.mu.Unlock()
	if err != nil {
		return speech.Voice{}, err
	}
	s.changed()
	return v, nil
}

// ToggleVoice selects the next catalog voice, wrapping around.
func (s *Settings) ToggleVoice() (speech.Voice, error) {
	s.mu.Lock()
	if len(s.catalog) == 0 {
		s.mu.Unlock()
		return speech.Voice{}, ErrNoVoices
	}
	i := indexOf(s.catalog, s.voice.ID)
	s.voice = s.catalog[(i+1)%len(s.catalog)]
	v := s.voice
	s.mu.Unlock()
	s.changed()
	return v, nil
}

// OnChange registers fn to run after any setting changes.
func (s *Settings) OnChange(fn func(Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, fn)
}

func (s *Settings) changed() {
	s.mu.RLock()
	hooks := s.hooks
	s.mu.RUnlock()
	snap := s.Snapshot()
	for _, fn := range hooks {
		fn(snap)
	}
}

// Snapshot returns the current settings.
func (s *Settings) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Snapshot{Muted: s.muted.Load(), Voice: s.voice}
}

func indexOf(voices []speech.Voice, id string) int {
	for i, v := range voices {
		if v.ID == id {
			return i
		}
	}
	return -1
}

type voiceSource []speech.Voice

func (v voiceSource) String(i int) string { return v[i].Name + " " + v[i].ID }
func (v voiceSource) Len() int            { return len(v) }

func match(catalog []speech.Voice, query string) (speech.Voice, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return speech.Voice{}, fmt.Errorf("%w: empty name", ErrUnknownVoice)
	}
	for _, v := range catalog {
		if strings.EqualFold(v.ID, q) || strings.EqualFold(v.Name, q) {
			return v, nil
		}
	}
	matches := fuzzy.FindFrom(q, voiceSource(catalog))
	if len(matches) == 0 {
		return speech.Voice{}, fmt.Errorf("%w: %q", ErrUnknownVoice, q)
	}
	return catalog[matches[0].Index], nil
}
