package referral

import (
	"encoding/json"
	"fmt"
)

// AppState is the persisted workflow document
type AppState struct {
	CurrentReferral *Packet  `json:"currentReferral"`
	ReferralHistory []Packet `json:"referralHistory"`
	NotesGenerated  bool     `json:"notesGenerated"`

	// extra keeps top-level keys written by newer versions so a round trip
	// through this version does not drop them.
	extra map[string]json.RawMessage
}

// DefaultState returns the empty state
func DefaultState() AppState {
	return AppState{ReferralHistory: []Packet{}}
}

// Clone returns a deep copy of the state
func (s AppState) Clone() AppState {
	c := AppState{
		CurrentReferral: s.CurrentReferral.Clone(),
		ReferralHistory: make([]Packet, len(s.ReferralHistory)),
		NotesGenerated:  s.NotesGenerated,
	}
	for i := range s.ReferralHistory {
		c.ReferralHistory[i] = *s.ReferralHistory[i].Clone()
	}
	if len(s.extra) > 0 {
		c.extra = make(map[string]json.RawMessage, len(s.extra))
		for k, v := range s.extra {
			c.extra[k] = v
		}
	}
	return c
}

type stateFields struct {
	CurrentReferral *Packet  `json:"currentReferral"`
	ReferralHistory []Packet `json:"referralHistory"`
	NotesGenerated  bool     `json:"notesGenerated"`
}

var knownStateKeys = map[string]struct{}{
	"currentReferral": {},
	"referralHistory": {},
	"notesGenerated":  {},
}

// MarshalJSON writes known fields plus any preserved unknown keys
func (s AppState) MarshalJSON() ([]byte, error) {
	history := s.ReferralHistory
	if history == nil {
		history = []Packet{}
	}
	known, err := json.Marshal(stateFields{
		CurrentReferral: s.CurrentReferral,
		ReferralHistory: history,
		NotesGenerated:  s.NotesGenerated,
	})
	if err != nil {
		return nil, err
	}
	if len(s.extra) == 0 {
		return known, nil
	}

	merged := make(map[string]json.RawMessage, len(s.extra)+3)
	for k, v := range s.extra {
		merged[k] = v
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(known, &fields); err != nil {
		return nil, err
	}
	for k, v := range fields {
		merged[k] = v
	}
	return json.Marshal(merged)
}

// UnmarshalJSON layers the document over the default state
func (s *AppState) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := stateFields{}
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*s = DefaultState()
	s.CurrentReferral = fields.CurrentReferral
	if fields.ReferralHistory != nil {
		s.ReferralHistory = fields.ReferralHistory
	}
	s.NotesGenerated = fields.NotesGenerated

	for k, v := range raw {
		if _, ok := knownStateKeys[k]; ok {
			continue
		}
		if s.extra == nil {
			s.extra = make(map[string]json.RawMessage)
		}
		s.extra[k] = v
	}
	return nil
}

// EncodeState serializes the state document
func EncodeState(s AppState) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return data, nil
}

// DecodeState parses a state document. Missing fields take their defaults.
func DecodeState(data []byte) (AppState, error) {
	var s AppState
	if err := json.Unmarshal(data, &s); err != nil {
		return DefaultState(), fmt.Errorf("decode state: %w", err)
	}
	if s.CurrentReferral != nil {
		s.CurrentReferral.normalize()
	}
	for i := range s.ReferralHistory {
		s.ReferralHistory[i].normalize()
	}
	return s, nil
}
