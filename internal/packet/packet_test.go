package packet

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
)

func demoReferral() *referral.Packet {
	return &referral.Packet{
		ID:                "ref-1",
		Status:            referral.StatusReady,
		Specialty:         "Cardiology",
		ReferralLetter:    "Dear Pediatric Cardiology Team,",
		SelectedSOAPNotes: []string{"soap-002", "soap-001"},
		SelectedLabs:      []string{"lab-003", "lab-gone"},
		SelectedImaging:   []string{"img-001"},
		PatientID:         record.DemoPatientID,
	}
}

func TestAssemble_OrderAndDanglingIDs(t *testing.T) {
	store := record.NewDemoStore()

	pkt, err := Assemble(demoReferral(), store)
	require.NoError(t, err)

	require.Len(t, pkt.OrderedNotes, 2)
	assert.Equal(t, "soap-001", pkt.OrderedNotes[0].ID)
	assert.Equal(t, "soap-002", pkt.OrderedNotes[1].ID)

	require.Len(t, pkt.OrderedLabs, 1)
	assert.Equal(t, "lab-003", pkt.OrderedLabs[0].ID)

	assert.Len(t, pkt.ActiveMedications, 2)
	assert.Equal(t, "Golden Gate Pediatrics", pkt.Letterhead.Provider.Practice.Name)
	assert.Equal(t, "Wang", pkt.Patient.LastName)
}

func TestAssemble_Deterministic(t *testing.T) {
	store := record.NewDemoStore()
	date := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)

	a, err := Assemble(demoReferral(), store)
	require.NoError(t, err)
	b, err := Assemble(demoReferral(), store)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Equal(t, a.Document(date).Text(), b.Document(date).Text())
}

func TestAssemble_MedicationsWithoutSelection(t *testing.T) {
	ref := demoReferral()
	ref.SelectedSOAPNotes = nil
	ref.SelectedLabs = nil
	ref.SelectedImaging = nil

	pkt, err := Assemble(ref, record.NewDemoStore())
	require.NoError(t, err)
	assert.Empty(t, pkt.OrderedNotes)
	assert.Len(t, pkt.ActiveMedications, 2)

	doc := pkt.Document(time.Now())
	kinds := make([]SectionKind, 0, len(doc.Sections))
	for _, s := range doc.Sections {
		kinds = append(kinds, s.Kind)
	}
	assert.Equal(t, []SectionKind{SectionLetterhead, SectionPatient, SectionLetter, SectionMedications}, kinds)
}

func TestAssemble_Errors(t *testing.T) {
	_, err := Assemble(nil, record.NewDemoStore())
	assert.ErrorIs(t, err, referral.ErrNoActiveReferral)

	ref := demoReferral()
	ref.PatientID = "pt-missing"
	_, err = Assemble(ref, record.NewDemoStore())
	assert.ErrorIs(t, err, record.ErrPatientNotFound)
}

func TestDocument_SectionOrder(t *testing.T) {
	pkt, err := Assemble(demoReferral(), record.NewDemoStore())
	require.NoError(t, err)

	doc := pkt.Document(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))
	assert.Equal(t, "Referral_Wang_Alex_2025-03-14.pdf", doc.Filename)

	var headings []string
	for _, s := range doc.Sections {
		for _, l := range s.Lines {
			if l.Style == StyleHeading || l.Style == StyleTitle {
				headings = append(headings, l.Text)
			}
		}
	}
	assert.Equal(t, []string{
		TitleReferralPacket,
		HeadingLetter,
		HeadingNotes,
		HeadingLabs,
		HeadingImaging,
		HeadingMedications,
	}, headings)

	assert.Equal(t, "Golden Gate Pediatrics", doc.Sections[0].Lines[0].Text)
	assert.True(t, doc.Sections[0].Rule)
	assert.Contains(t, doc.Text(), "Patient: Alex Wang")
}
