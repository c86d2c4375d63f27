package letter

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/pkg/circuitbreaker"
)

type outcomeRecorder struct{ outcomes []Outcome }

func (o *outcomeRecorder) ObserveGeneration(outcome Outcome, _ time.Duration) {
	o.outcomes = append(o.outcomes, outcome)
}

func TestBuildRequest_ResolvesInChartOrder(t *testing.T) {
	p := record.DemoPatient()
	sel := referral.Evidence{
		SOAPNotes: []string{"soap-003", "soap-001", "soap-missing"},
		Labs:      []string{"lab-003", "lab-001"},
		Imaging:   []string{"img-005", "img-001"},
	}

	req := BuildRequest(p, record.DemoProvider(), "Cardiology", sel, 3)

	require.Len(t, req.SOAPNotes, 2)
	assert.Equal(t, p.SOAPNotes[0].Date, req.SOAPNotes[0].Date)
	assert.Equal(t, p.SOAPNotes[2].Date, req.SOAPNotes[1].Date)

	require.Len(t, req.Labs, 2)
	assert.Equal(t, p.LabResults[0].Name, req.Labs[0].Name)

	require.Len(t, req.Imaging, 2)
	assert.Equal(t, p.ImagingResults[0].Type, req.Imaging[0].Type)

	assert.Len(t, req.Medications, len(p.ActiveMedications()))
	for _, m := range req.Medications {
		assert.NotEqual(t, "Nystatin Oral Suspension", m.Name)
	}
	assert.Equal(t, "Cardiology", req.Specialty)
	assert.Equal(t, "Alex", req.Patient.FirstName)
}

func TestBuildRequest_NoteCapAndFallback(t *testing.T) {
	p := record.DemoPatient()

	all := referral.Evidence{SOAPNotes: []string{"soap-001", "soap-002", "soap-003", "soap-004", "soap-005"}}
	req := BuildRequest(p, record.DemoProvider(), "Cardiology", all, 2)
	assert.Len(t, req.SOAPNotes, 2)

	req = BuildRequest(p, record.DemoProvider(), "Cardiology", referral.Evidence{}, 0)
	require.Len(t, req.SOAPNotes, DefaultRecentNotes)
	assert.Equal(t, p.SOAPNotes[0].ChiefComplaint, req.SOAPNotes[0].ChiefComplaint)
	assert.Empty(t, req.Labs)
	assert.NotNil(t, req.Labs)
}

func TestRequest_FingerprintIsStable(t *testing.T) {
	p := record.DemoPatient()
	a := referral.Evidence{Labs: []string{"lab-001", "lab-003"}}
	b := referral.Evidence{Labs: []string{"lab-003", "lab-001"}}

	fa, err := BuildRequest(p, record.DemoProvider(), "Cardiology", a, 3).Fingerprint()
	require.NoError(t, err)
	fb, err := BuildRequest(p, record.DemoProvider(), "Cardiology", b, 3).Fingerprint()
	require.NoError(t, err)
	assert.Equal(t, fa, fb)

	fc, err := BuildRequest(p, record.DemoProvider(), "Nephrology", a, 3).Fingerprint()
	require.NoError(t, err)
	assert.NotEqual(t, fa, fc)
}

func TestRenderPrompt(t *testing.T) {
	p := record.DemoPatient()
	sel := referral.Evidence{
		SOAPNotes: []string{"soap-001", "soap-002"},
		Labs:      []string{"lab-003"},
		Imaging:   []string{"img-001"},
	}
	req := BuildRequest(p, record.DemoProvider(), "Cardiology", sel, 3)

	prompt, err := RenderPrompt(req)
	require.NoError(t, err)

	assert.Contains(t, prompt, "referral letter to a Cardiology specialist")
	assert.Contains(t, prompt, "- Name: Monica Kwan, MD")
	assert.Contains(t, prompt, "- Name: Alex Wang")
	assert.Contains(t, prompt, `Be addressed "To the Pediatric Cardiology Team"`)
	assert.Equal(t, 1, strings.Count(prompt, "\n---\n"))
	assert.Contains(t, prompt, "Impression: "+p.ImagingResults[0].Impression)
	for _, m := range p.ActiveMedications() {
		assert.Contains(t, prompt, "- "+m.Name+" "+m.Dosage+" "+m.Frequency)
	}
}

func TestGenerator_Success(t *testing.T) {
	rec := &outcomeRecorder{}
	var prompts []string
	client := ClientFunc(func(_ context.Context, prompt string) (string, error) {
		prompts = append(prompts, prompt)
		return "Dear Pediatric Cardiology Team,", nil
	})
	g := NewGenerator(client, GeneratorConfig{Observer: rec}, nil)

	text, err := g.Generate(context.Background(), BuildRequest(record.DemoPatient(), record.DemoProvider(), "Cardiology", referral.Evidence{}, 3))
	require.NoError(t, err)
	assert.Equal(t, "Dear Pediatric Cardiology Team,", text)
	assert.Len(t, prompts, 1)
	assert.Equal(t, []Outcome{OutcomeSuccess}, rec.outcomes)
}

func TestGenerator_Failures(t *testing.T) {
	req := BuildRequest(record.DemoPatient(), record.DemoProvider(), "Cardiology", referral.Evidence{}, 3)

	t.Run("service error", func(t *testing.T) {
		rec := &outcomeRecorder{}
		g := NewGenerator(UnavailableClient{}, GeneratorConfig{Observer: rec}, nil)
		_, err := g.Generate(context.Background(), req)
		assert.ErrorIs(t, err, ErrNoTextService)
		assert.Equal(t, []Outcome{OutcomeFailure}, rec.outcomes)
	})

	t.Run("timeout", func(t *testing.T) {
		rec := &outcomeRecorder{}
		slow := ClientFunc(func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		})
		g := NewGenerator(slow, GeneratorConfig{Timeout: 10 * time.Millisecond, Observer: rec}, nil)
		_, err := g.Generate(context.Background(), req)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, []Outcome{OutcomeTimeout}, rec.outcomes)
	})

	t.Run("empty reply", func(t *testing.T) {
		g := NewGenerator(ClientFunc(func(context.Context, string) (string, error) { return "  \n", nil }), GeneratorConfig{}, nil)
		_, err := g.Generate(context.Background(), req)
		assert.ErrorIs(t, err, ErrEmptyLetter)
	})
}

func TestGenerator_BreakerRejects(t *testing.T) {
	cfg := circuitbreaker.DefaultConfig("text-service")
	cfg.Timeout = time.Hour
	cb, err := circuitbreaker.New(cfg, nil)
	require.NoError(t, err)

	var calls int32
	client := ClientFunc(func(context.Context, string) (string, error) {
		atomic.AddInt32(&calls, 1)
		return "", errors.New("overloaded")
	})
	rec := &outcomeRecorder{}
	g := NewGenerator(client, GeneratorConfig{Breaker: cb, Observer: rec}, nil)
	req := BuildRequest(record.DemoPatient(), record.DemoProvider(), "Cardiology", referral.Evidence{}, 3)

	for i := 0; i < int(cfg.FailureThreshold)+1; i++ {
		_, err := g.Generate(context.Background(), req)
		assert.Error(t, err)
	}

	assert.Equal(t, int32(cfg.FailureThreshold), atomic.LoadInt32(&calls))
	assert.Equal(t, OutcomeRejected, rec.outcomes[len(rec.outcomes)-1])
}
