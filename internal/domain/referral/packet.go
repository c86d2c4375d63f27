// Package referral implements the referral packet lifecycle and its persisted state.
package referral

import (
	"errors"
	"time"
)

// Status represents referral packet status
type Status string

const (
	StatusDraft      Status = "draft"
	StatusInProgress Status = "in_progress"
	StatusReady      Status = "ready"
	StatusSent       Status = "sent"
)

var statusRank = map[Status]int{
	StatusDraft:      0,
	StatusInProgress: 1,
	StatusReady:      2,
	StatusSent:       3,
}

// ErrInvalidTransition is returned when a status change would move backward,
// stand still, or skip the completion path. State is left untouched.
var ErrInvalidTransition = errors.New("invalid referral status transition")

// Valid reports whether s is a known status
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Before reports whether s precedes o in the lifecycle
func (s Status) Before(o Status) bool {
	return statusRank[s] < statusRank[o]
}

// Evidence holds the selected record IDs per category
type Evidence struct {
	SOAPNotes []string `json:"soapNotes"`
	Labs      []string `json:"labs"`
	Imaging   []string `json:"imaging"`
}

// Clone returns a deep copy with nil slices normalized to empty
func (e Evidence) Clone() Evidence {
	return Evidence{
		SOAPNotes: cloneIDs(e.SOAPNotes),
		Labs:      cloneIDs(e.Labs),
		Imaging:   cloneIDs(e.Imaging),
	}
}

// Packet is the referral packet: the letter plus its selected supporting evidence
type Packet struct {
	ID                string     `json:"id"`
	CreatedAt         time.Time  `json:"createdAt"`
	Status            Status     `json:"status"`
	Specialty         string     `json:"specialty"`
	ReferralLetter    string     `json:"referralLetter"`
	SelectedSOAPNotes []string   `json:"selectedSOAPNotes"`
	SelectedLabs      []string   `json:"selectedLabs"`
	SelectedImaging   []string   `json:"selectedImaging"`
	SpecialistNotes   string     `json:"specialistNotes"`
	PatientID         string     `json:"patientId"`
	LetterRequestHash string     `json:"letterRequestHash,omitempty"`
	SentAt            *time.Time `json:"sentAt,omitempty"`
}

// Evidence returns the committed selection snapshot
func (p *Packet) Evidence() Evidence {
	return Evidence{
		SOAPNotes: p.SelectedSOAPNotes,
		Labs:      p.SelectedLabs,
		Imaging:   p.SelectedImaging,
	}.Clone()
}

// Clone returns a deep copy of the packet
func (p *Packet) Clone() *Packet {
	if p == nil {
		return nil
	}
	c := *p
	c.SelectedSOAPNotes = cloneIDs(p.SelectedSOAPNotes)
	c.SelectedLabs = cloneIDs(p.SelectedLabs)
	c.SelectedImaging = cloneIDs(p.SelectedImaging)
	if p.SentAt != nil {
		t := *p.SentAt
		c.SentAt = &t
	}
	return &c
}

func (p *Packet) setEvidence(e Evidence) {
	p.SelectedSOAPNotes = dedupe(e.SOAPNotes)
	p.SelectedLabs = dedupe(e.Labs)
	p.SelectedImaging = dedupe(e.Imaging)
}

// normalize repairs zero values left by older or partial documents
func (p *Packet) normalize() {
	if !p.Status.Valid() {
		p.Status = StatusDraft
	}
	p.SelectedSOAPNotes = dedupe(p.SelectedSOAPNotes)
	p.SelectedLabs = dedupe(p.SelectedLabs)
	p.SelectedImaging = dedupe(p.SelectedImaging)
}

func cloneIDs(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
