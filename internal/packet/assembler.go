// Package packet assembles a referral into its resolved attachments and a
// fixed-order export document.
package packet

import (
	"fmt"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
)

// PatientHeader identifies the patient on the document
type PatientHeader struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	MRN         string `json:"mrn"`
}

// Letterhead is the referring provider and practice block
type Letterhead struct {
	Provider record.Provider `json:"provider"`
}

// Packet is a referral with every referenced record resolved
type Packet struct {
	ReferralID        string                 `json:"referralId"`
	Status            referral.Status        `json:"status"`
	Specialty         string                 `json:"specialty"`
	LetterText        string                 `json:"letterText"`
	SpecialistNotes   string                 `json:"specialistNotes,omitempty"`
	OrderedNotes      []record.SOAPNote      `json:"orderedNotes"`
	OrderedLabs       []record.LabResult     `json:"orderedLabs"`
	OrderedImaging    []record.ImagingResult `json:"orderedImaging"`
	ActiveMedications []record.Medication    `json:"activeMedications"`
	Letterhead        Letterhead             `json:"providerLetterhead"`
	Patient           PatientHeader          `json:"patientHeader"`
}

// Assemble resolves the referral's selections against the record store.
// Records come out in chart order; IDs that no longer resolve are skipped.
// All active medications are included regardless of selection.
func Assemble(ref *referral.Packet, store record.Store) (*Packet, error) {
	if ref == nil {
		return nil, referral.ErrNoActiveReferral
	}
	p, err := store.Patient(ref.PatientID)
	if err != nil {
		return nil, fmt.Errorf("assemble %s: %w", ref.ID, err)
	}

	out := &Packet{
		ReferralID:        ref.ID,
		Status:            ref.Status,
		Specialty:         ref.Specialty,
		LetterText:        ref.ReferralLetter,
		SpecialistNotes:   ref.SpecialistNotes,
		OrderedNotes:      []record.SOAPNote{},
		OrderedLabs:       []record.LabResult{},
		OrderedImaging:    []record.ImagingResult{},
		ActiveMedications: p.ActiveMedications(),
		Letterhead:        Letterhead{Provider: store.Provider()},
		Patient: PatientHeader{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: p.DateOfBirth,
			MRN:         p.MRN,
		},
	}

	notes := set(ref.SelectedSOAPNotes)
	for _, n := range p.SOAPNotes {
		if _, ok := notes[n.ID]; ok {
			out.OrderedNotes = append(out.OrderedNotes, n)
		}
	}
	labs := set(ref.SelectedLabs)
	for _, l := range p.LabResults {
		if _, ok := labs[l.ID]; ok {
			out.OrderedLabs = append(out.OrderedLabs, l)
		}
	}
	imaging := set(ref.SelectedImaging)
	for _, img := range p.ImagingResults {
		if _, ok := imaging[img.ID]; ok {
			out.OrderedImaging = append(out.OrderedImaging, img)
		}
	}

	return out, nil
}

func set(ids []string) map[string]struct{} {
	m := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		m[id] = struct{}{}
	}
	return m
}
