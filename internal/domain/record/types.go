// Package record provides the read-only clinical record store backing the referral workflow.
package record

import "errors"

// ErrPatientNotFound is returned when a patient ID does not resolve
var ErrPatientNotFound = errors.New("patient not found")

// Practice identifies the referring practice
type Practice struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Phone   string `json:"phone"`
	Fax     string `json:"fax"`
}

// Provider is the referring clinician
type Provider struct {
	Name        string   `json:"name"`
	Credentials string   `json:"credentials"`
	Specialty   string   `json:"specialty"`
	NPI         string   `json:"npi"`
	Practice    Practice `json:"practice"`
}

// DisplayName returns "Name, Credentials"
func (p Provider) DisplayName() string {
	if p.Credentials == "" {
		return p.Name
	}
	return p.Name + ", " + p.Credentials
}

// Medication is a prescribed medication
type Medication struct {
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Frequency    string `json:"frequency"`
	StartDate    string `json:"startDate"`
	PrescribedBy string `json:"prescribedBy"`
	Active       bool   `json:"active"`
}

// LabStatus classifies a lab panel
type LabStatus string

const (
	LabNormal   LabStatus = "normal"
	LabAbnormal LabStatus = "abnormal"
	LabCritical LabStatus = "critical"
)

// LabValue is a single test result within a lab panel
type LabValue struct {
	Test           string `json:"test"`
	Value          string `json:"value"`
	Unit           string `json:"unit"`
	ReferenceRange string `json:"referenceRange"`
	Flag           string `json:"flag,omitempty"`
}

// LabResult is a lab panel
type LabResult struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Date      string     `json:"date"`
	Category  string     `json:"category"`
	Status    LabStatus  `json:"status"`
	Results   []LabValue `json:"results"`
	OrderedBy string     `json:"orderedBy"`
	Notes     string     `json:"notes,omitempty"`
}

// ImagingResult is an imaging study report
type ImagingResult struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Date        string `json:"date"`
	Indication  string `json:"indication"`
	Findings    string `json:"findings"`
	Impression  string `json:"impression"`
	PerformedBy string `json:"performedBy"`
	Facility    string `json:"facility"`
}

// DiagnosisCode is an ICD-10 code attached to a visit note
type DiagnosisCode struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// SOAPNote is a visit note
type SOAPNote struct {
	ID             string          `json:"id"`
	Date           string          `json:"date"`
	VisitType      string          `json:"visitType"`
	Provider       string          `json:"provider"`
	ChiefComplaint string          `json:"chiefComplaint"`
	Subjective     string          `json:"subjective"`
	Objective      string          `json:"objective"`
	Assessment     string          `json:"assessment"`
	Plan           string          `json:"plan"`
	ICD10Codes     []DiagnosisCode `json:"icd10Codes,omitempty"`
}

// Guardian is the patient's legal guardian
type Guardian struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
	Email        string `json:"email"`
}

// Address is a postal address
type Address struct {
	Street string `json:"street"`
	City   string `json:"city"`
	State  string `json:"state"`
	Zip    string `json:"zip"`
}

// Patient is the chart for a single patient. Note, lab and imaging slices are
// in canonical order (most recent visit note first).
type Patient struct {
	ID                  string          `json:"id"`
	FirstName           string          `json:"firstName"`
	LastName            string          `json:"lastName"`
	DateOfBirth         string          `json:"dateOfBirth"`
	Age                 string          `json:"age"`
	Sex                 string          `json:"sex"`
	MRN                 string          `json:"mrn"`
	InsuranceProvider   string          `json:"insuranceProvider"`
	InsuranceID         string          `json:"insuranceId"`
	Guardian            Guardian        `json:"guardian"`
	Address             Address         `json:"address"`
	Allergies           []string        `json:"allergies"`
	PrimaryCareProvider string          `json:"primaryCareProvider"`
	Medications         []Medication    `json:"medications"`
	LabResults          []LabResult     `json:"labResults"`
	ImagingResults      []ImagingResult `json:"imagingResults"`
	SOAPNotes           []SOAPNote      `json:"soapNotes"`
}

// FullName returns "First Last"
func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// ActiveMedications returns currently prescribed medications in chart order
func (p *Patient) ActiveMedications() []Medication {
	active := make([]Medication, 0, len(p.Medications))
	for _, m := range p.Medications {
		if m.Active {
			active = append(active, m)
		}
	}
	return active
}
