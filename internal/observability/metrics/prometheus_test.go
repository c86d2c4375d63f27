package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/letter"
	"github.com/drfirst/go-referral/pkg/circuitbreaker"
)

func TestMetrics_Observers(t *testing.T) {
	m := New(prometheus.NewRegistry())

	for _, typ := range []referral.EventType{
		referral.EventReferralCreated,
		referral.EventReferralCreated,
		referral.EventReferralCompleted,
		referral.EventStateReset,
		referral.EventNotesGenerated,
	} {
		require.NoError(t, m.Publish(context.Background(), &referral.Event{EventType: typ}))
	}
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReferralsCreated))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReferralsCompleted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StateResets))

	m.ObserveToggle("labs")
	m.ObserveToggle("labs")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SelectionToggles.WithLabelValues("labs")))

	m.ObserveGeneration(letter.OutcomeSuccess, 2*time.Second)
	m.ObserveGeneration(letter.OutcomeRejected, 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LetterGenerations.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LetterGenerations.WithLabelValues("rejected")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.GenerationDuration))

	m.ObservePersistenceFailure("save")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistenceFailures.WithLabelValues("save")))

	m.ObserveBreaker("letter", circuitbreaker.StateOpen)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("letter")))

	m.ObserveOutboxPending(7)
	assert.Equal(t, 7.0, testutil.ToFloat64(m.OutboxPending))
}

func TestMetrics_Handler(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveToggle("imaging")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `referral_selection_toggles_total{category="imaging"} 1`)
}
