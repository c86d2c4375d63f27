package record

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticStore_Patient(t *testing.T) {
	store := NewDemoStore()

	p, err := store.Patient(DemoPatientID)
	require.NoError(t, err)
	assert.Equal(t, "Alex Wang", p.FullName())

	_, err = store.Patient("pt-missing")
	assert.ErrorIs(t, err, ErrPatientNotFound)
}

func TestActiveMedications(t *testing.T) {
	p := DemoPatient()

	meds := p.ActiveMedications()
	require.Len(t, meds, 2)
	for _, m := range meds {
		assert.True(t, m.Active)
	}
	assert.Equal(t, "Vitamin D3 Drops", meds[0].Name)
}

func TestRecentSOAPNotes(t *testing.T) {
	p := DemoPatient()

	notes := RecentSOAPNotes(p, 3)
	require.Len(t, notes, 3)
	assert.Equal(t, "soap-001", notes[0].ID)

	assert.Len(t, RecentSOAPNotes(p, 0), len(p.SOAPNotes))
	assert.Len(t, RecentSOAPNotes(p, 100), len(p.SOAPNotes))
}

func TestHasPendingReferral(t *testing.T) {
	p := DemoPatient()
	assert.True(t, HasPendingReferral(p))

	p.SOAPNotes[0].Plan = "Return in 12 months"
	assert.False(t, HasPendingReferral(p))

	assert.False(t, HasPendingReferral(&Patient{}))
}

func TestRelevantImaging(t *testing.T) {
	p := DemoPatient()

	tests := []struct {
		specialty string
		want      []string
	}{
		{"Cardiology", []string{"img-001", "img-005"}},
		{"nephrology", []string{"img-004"}},
		{"Orthopedics", []string{"img-002"}},
		{"Dermatology", nil},
	}

	for _, tt := range tests {
		t.Run(tt.specialty, func(t *testing.T) {
			var got []string
			for _, img := range RelevantImaging(p, tt.specialty) {
				got = append(got, img.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}
