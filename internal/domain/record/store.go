package record

import (
	"strings"
)

// Store exposes ID-addressable chart data. Implementations must return records
// in a stable canonical order.
type Store interface {
	Patient(id string) (*Patient, error)
	Provider() Provider
}

// StaticStore serves a fixed in-memory dataset
type StaticStore struct {
	provider Provider
	patients map[string]*Patient
}

// NewStaticStore creates a store over the given provider and patients
func NewStaticStore(provider Provider, patients ...*Patient) *StaticStore {
	s := &StaticStore{
		provider: provider,
		patients: make(map[string]*Patient, len(patients)),
	}
	for _, p := range patients {
		s.patients[p.ID] = p
	}
	return s
}

// NewDemoStore returns the store seeded with the demo chart
func NewDemoStore() *StaticStore {
	return NewStaticStore(DemoProvider(), DemoPatient())
}

// Patient returns the patient chart by ID
func (s *StaticStore) Patient(id string) (*Patient, error) {
	p, ok := s.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return p, nil
}

// Provider returns the referring provider
func (s *StaticStore) Provider() Provider {
	return s.provider
}

// RecentSOAPNotes returns up to count most recent visit notes
func RecentSOAPNotes(p *Patient, count int) []SOAPNote {
	if count <= 0 || count > len(p.SOAPNotes) {
		count = len(p.SOAPNotes)
	}
	return p.SOAPNotes[:count]
}

// MostRecentSOAPNote returns the latest visit note, or false if the chart has none
func MostRecentSOAPNote(p *Patient) (SOAPNote, bool) {
	if len(p.SOAPNotes) == 0 {
		return SOAPNote{}, false
	}
	return p.SOAPNotes[0], true
}

// HasPendingReferral reports whether the latest visit plan calls for a referral
func HasPendingReferral(p *Patient) bool {
	note, ok := MostRecentSOAPNote(p)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(note.Plan), "referral")
}

var specialtyImaging = map[string][]string{
	"cardiology":  {"Echocardiogram", "EKG", "Chest X-ray"},
	"nephrology":  {"Kidney Ultrasound", "Renal Scan"},
	"orthopedics": {"Hip Ultrasound", "X-ray", "MRI"},
}

// RelevantImaging returns the imaging studies typically sent to a specialty
func RelevantImaging(p *Patient, specialty string) []ImagingResult {
	types := specialtyImaging[strings.ToLower(specialty)]
	var out []ImagingResult
	for _, img := range p.ImagingResults {
		for _, t := range types {
			if strings.Contains(strings.ToLower(img.Type), strings.ToLower(t)) {
				out = append(out, img)
				break
			}
		}
	}
	return out
}
