package export

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/packet"
)

func demoPacket(t *testing.T) *packet.Packet {
	t.Helper()
	p, err := packet.Assemble(&referral.Packet{
		ID:                "ref-1",
		Status:            referral.StatusReady,
		Specialty:         "Cardiology",
		ReferralLetter:    "Dear Pediatric Cardiology Team,\n\nPlease evaluate Alex.",
		SelectedSOAPNotes: []string{"soap-001"},
		SelectedLabs:      []string{"lab-003"},
		SelectedImaging:   []string{"img-001"},
		PatientID:         record.DemoPatientID,
	}, record.NewDemoStore())
	require.NoError(t, err)
	return p
}

func TestComposeEmail(t *testing.T) {
	p := demoPacket(t)

	draft := ComposeEmail(p, "Referral_Wang_Alex_2025-03-14.pdf")
	assert.Equal(t, "Referral for Alex Wang - Pediatric Cardiology", draft.Subject)
	assert.True(t, strings.HasPrefix(draft.Body, "Dear Pediatric Cardiology Team,"))
	assert.Contains(t, draft.Body, "Reason for referral: "+p.OrderedNotes[0].Assessment)
	assert.Contains(t, draft.Body, "Golden Gate Pediatrics")
	assert.True(t, strings.HasSuffix(draft.Body, "Monica Kwan, MD\n"))

	p.SpecialistNotes = "Murmur follow-up"
	assert.Contains(t, ComposeEmail(p, "").Body, "Reason for referral: Murmur follow-up")
}

func TestEmailDraft_MailtoURL(t *testing.T) {
	draft := EmailDraft{Subject: "Referral for Alex Wang", Body: "line one\nline two"}

	link := draft.MailtoURL()
	require.True(t, strings.HasPrefix(link, "mailto:?"))
	assert.NotContains(t, link, "+")

	q, err := url.ParseQuery(strings.TrimPrefix(link, "mailto:?"))
	require.NoError(t, err)
	assert.Equal(t, draft.Subject, q.Get("subject"))
	assert.Equal(t, draft.Body, q.Get("body"))
}

func TestLocalArchive_Store(t *testing.T) {
	dir := t.TempDir()
	a, err := NewLocalArchive(dir)
	require.NoError(t, err)
	a.now = func() time.Time { return time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC) }

	key, err := a.Store(context.Background(), "ref-1", "../Referral Wang.pdf", bytes.NewReader([]byte("%PDF")), "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, "2025/03/ref-1/Referral_Wang.pdf", key)

	data, err := os.ReadFile(filepath.Join(dir, key))
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}

func TestNewArchive(t *testing.T) {
	a, err := NewArchive(context.Background(), ArchiveConfig{Type: ArchiveNone})
	require.NoError(t, err)
	assert.Nil(t, a)

	_, err = NewArchive(context.Background(), ArchiveConfig{Type: ArchiveS3})
	assert.Error(t, err)

	_, err = NewArchive(context.Background(), ArchiveConfig{Type: "ftp"})
	assert.Error(t, err)

	local, err := NewArchive(context.Background(), ArchiveConfig{Type: ArchiveLocal, LocalPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LocalArchive{}, local)
}

func TestPDFRenderer_Render(t *testing.T) {
	r := NewPDFRenderer(os.Getenv("PDF_FONT_PATH"), nil)
	doc := demoPacket(t).Document(time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC))

	out, err := r.Render(doc)
	if errors.Is(err, ErrNoFont) {
		t.Skip("no TTF font available")
	}
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
