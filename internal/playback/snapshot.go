package playback

import (
	"maps"

	"slidevoice/internal/assets"
	"slidevoice/internal/decks"
)

// Snapshot is a point-in-time copy of session state for rendering.
type Snapshot struct {
	PresentationID string
	CurrentSlide   int
	TotalSlides    int
	Audio          *assets.Asset
	Playing        bool
	Script         *decks.ScriptRecord
	ScriptVisible  bool
	ScriptWarning  string
	Ops            map[decks.Action]decks.OpState
}

// Snapshot copies the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		PresentationID: s.presentationID,
		CurrentSlide:   s.current,
		TotalSlides:    s.total,
		Playing:        s.playing,
		ScriptVisible:  s.scriptVisible,
		ScriptWarning:  s.scriptWarning,
		Ops:            maps.Clone(s.ops),
	}
	if s.asset != nil {
		a := *s.asset
		snap.Audio = &a
	}
	if s.script != nil {
		r := *s.script
		snap.Script = &r
	}
	return snap
}

// Op returns the state of action.
func (s Snapshot) Op(action decks.Action) decks.OpState {
	if st, ok := s.Ops[action]; ok {
		return st
	}
	return decks.Idle()
}

// Busy reports whether any action is loading.
func (s Snapshot) Busy() bool {
	for _, st := range s.Ops {
		if st.IsLoading() {
			return true
		}
	}
	return false
}

func (s Snapshot) CanPrevious() bool { return s.CurrentSlide > 1 }

func (s Snapshot) CanNext() bool {
	return s.TotalSlides <= 0 || s.CurrentSlide < s.TotalSlides
}
