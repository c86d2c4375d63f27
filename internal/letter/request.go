// Package letter builds referral letter requests and drives the external text service.
package letter

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
)

// DefaultRecentNotes caps how many visit notes go into a request
const DefaultRecentNotes = 3

// PatientInfo is the demographic block sent with a request
type PatientInfo struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	DateOfBirth string `json:"dateOfBirth"`
	Age         string `json:"age"`
	Sex         string `json:"sex"`
}

// NoteSummary is the part of a visit note the letter needs
type NoteSummary struct {
	Date           string `json:"date"`
	VisitType      string `json:"visitType"`
	ChiefComplaint string `json:"chiefComplaint"`
	Assessment     string `json:"assessment"`
	Plan           string `json:"plan"`
}

// MedicationSummary is an active medication line
type MedicationSummary struct {
	Name      string `json:"name"`
	Dosage    string `json:"dosage"`
	Frequency string `json:"frequency"`
}

// ImagingSummary is a selected imaging study
type ImagingSummary struct {
	Type       string `json:"type"`
	Date       string `json:"date"`
	Impression string `json:"impression"`
}

// LabTest is one measured value in a lab panel
type LabTest struct {
	Test  string `json:"test"`
	Value string `json:"value"`
	Unit  string `json:"unit"`
}

// LabSummary is a selected lab panel
type LabSummary struct {
	Name    string    `json:"name"`
	Date    string    `json:"date"`
	Results []LabTest `json:"results"`
}

// Request is the canonical, stateless letter-generation payload
type Request struct {
	Specialty   string              `json:"specialty"`
	Patient     PatientInfo         `json:"patientInfo"`
	Provider    record.Provider     `json:"providerInfo"`
	SOAPNotes   []NoteSummary       `json:"soapNotes"`
	Medications []MedicationSummary `json:"medications"`
	Imaging     []ImagingSummary    `json:"relevantImaging"`
	Labs        []LabSummary        `json:"relevantLabs"`
}

// BuildRequest resolves the selection against the patient chart. Records keep
// chart order regardless of selection order; IDs that do not resolve are
// skipped. Selected notes are capped at maxNotes; with no notes selected the
// maxNotes most recent notes are used.
func BuildRequest(p *record.Patient, provider record.Provider, specialty string, sel referral.Evidence, maxNotes int) Request {
	if maxNotes <= 0 {
		maxNotes = DefaultRecentNotes
	}

	req := Request{
		Specialty: specialty,
		Patient: PatientInfo{
			FirstName:   p.FirstName,
			LastName:    p.LastName,
			DateOfBirth: p.DateOfBirth,
			Age:         p.Age,
			Sex:         p.Sex,
		},
		Provider:    provider,
		SOAPNotes:   []NoteSummary{},
		Medications: []MedicationSummary{},
		Imaging:     []ImagingSummary{},
		Labs:        []LabSummary{},
	}

	notes := record.RecentSOAPNotes(p, maxNotes)
	if len(sel.SOAPNotes) > 0 {
		wanted := idSet(sel.SOAPNotes)
		notes = nil
		for _, n := range p.SOAPNotes {
			if _, ok := wanted[n.ID]; ok {
				notes = append(notes, n)
			}
		}
	}
	for i, n := range notes {
		if i == maxNotes {
			break
		}
		req.SOAPNotes = append(req.SOAPNotes, NoteSummary{
			Date:           n.Date,
			VisitType:      n.VisitType,
			ChiefComplaint: n.ChiefComplaint,
			Assessment:     n.Assessment,
			Plan:           n.Plan,
		})
	}

	for _, m := range p.ActiveMedications() {
		req.Medications = append(req.Medications, MedicationSummary{
			Name:      m.Name,
			Dosage:    m.Dosage,
			Frequency: m.Frequency,
		})
	}

	imaging := idSet(sel.Imaging)
	for _, img := range p.ImagingResults {
		if _, ok := imaging[img.ID]; ok {
			req.Imaging = append(req.Imaging, ImagingSummary{
				Type:       img.Type,
				Date:       img.Date,
				Impression: img.Impression,
			})
		}
	}

	labs := idSet(sel.Labs)
	for _, lab := range p.LabResults {
		if _, ok := labs[lab.ID]; !ok {
			continue
		}
		summary := LabSummary{Name: lab.Name, Date: lab.Date, Results: make([]LabTest, 0, len(lab.Results))}
		for _, r := range lab.Results {
			summary.Results = append(summary.Results, LabTest{Test: r.Test, Value: r.Value, Unit: r.Unit})
		}
		req.Labs = append(req.Labs, summary)
	}

	return req
}

// Fingerprint returns a stable hash of the request. Identical selections
// against an unchanged chart produce the same fingerprint.
func (r Request) Fingerprint() (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

func idSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
