package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/drfirst/go-referral/internal/domain/record"
	"github.com/drfirst/go-referral/internal/domain/referral"
	"github.com/drfirst/go-referral/internal/letter"
	"github.com/drfirst/go-referral/internal/workflow"
	"github.com/drfirst/go-referral/pkg/workerpool"
)

type testServer struct {
	router  http.Handler
	svc     *workflow.Service
	hub     *workflow.Hub
	reply   func(ctx context.Context, prompt string) (string, error)
	results chan *workerpool.Result
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ts := &testServer{
		hub:     workflow.NewHub(nil),
		results: make(chan *workerpool.Result, 4),
	}
	ts.reply = func(context.Context, string) (string, error) { return "Dear colleague", nil }

	manager := referral.NewManager(referral.NewMemoryStore(), nil, referral.WithEventSink(ts.hub))
	client := letter.ClientFunc(func(ctx context.Context, prompt string) (string, error) {
		return ts.reply(ctx, prompt)
	})
	cfg := workflow.DefaultConfig()
	cfg.NotesDelay = 0
	ts.svc = workflow.NewService(context.Background(), cfg, workflow.Deps{
		Records:   record.NewDemoStore(),
		Manager:   manager,
		Generator: letter.NewGenerator(client, letter.GeneratorConfig{}, nil),
	})

	poolCfg := workerpool.DefaultConfig()
	poolCfg.OnResult = func(r *workerpool.Result) { ts.results <- r }
	pool, err := workerpool.New(poolCfg, ts.svc.RunTask, nil)
	require.NoError(t, err)
	pool.Start()
	t.Cleanup(func() { pool.Stop() })
	ts.svc.UsePool(pool)

	r := chi.NewRouter()
	r.Mount("/api/v1", NewReferralHandler(ts.svc, ts.hub, nil).Routes())
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestState_Initial(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/state", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	view := decodeBody[workflow.View](t, rec)
	assert.Equal(t, record.DemoPatientID, view.PatientID)
	assert.Nil(t, view.CurrentReferral)
	assert.Empty(t, view.ReferralHistory)
	assert.Equal(t, []string{"lab-003"}, view.Selection.Labs)
}

func TestCreateReferral(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/referral", CreateRequest{Specialty: "Nephrology"})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := decodeBody[referral.Packet](t, rec)
	assert.Equal(t, referral.StatusDraft, first.Status)
	assert.Equal(t, "Nephrology", first.Specialty)

	rec = ts.do(t, http.MethodPost, "/api/v1/referral", CreateRequest{Specialty: "Cardiology"})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := decodeBody[referral.Packet](t, rec)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Nephrology", second.Specialty)

	rec = ts.do(t, http.MethodPost, "/api/v1/referral", CreateRequest{PatientID: "pt-999"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestToggle_Validation(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name string
		body interface{}
		code int
	}{
		{"valid", ToggleRequest{Category: "labs", ID: "lab-001"}, http.StatusOK},
		{"unknown category", ToggleRequest{Category: "vitals", ID: "v-1"}, http.StatusBadRequest},
		{"missing id", ToggleRequest{Category: "labs"}, http.StatusBadRequest},
		{"empty body", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, http.MethodPost, "/api/v1/referral/selection/toggle", tt.body)
			assert.Equal(t, tt.code, rec.Code)
		})
	}
}

func TestUpdate_StatusRules(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPatch, "/api/v1/referral", map[string]string{"specialistNotes": "x"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusCreated, ts.do(t, http.MethodPost, "/api/v1/referral", CreateRequest{}).Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/referral", map[string]string{"specialistNotes": "Please see soon", "status": "in_progress"})
	require.Equal(t, http.StatusOK, rec.Code)
	p := decodeBody[referral.Packet](t, rec)
	assert.Equal(t, "Please see soon", p.SpecialistNotes)
	assert.Equal(t, referral.StatusInProgress, p.Status)

	rec = ts.do(t, http.MethodPatch, "/api/v1/referral", map[string]string{"status": "draft"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/referral", map[string]string{"status": "sent"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodPatch, "/api/v1/referral", map[string]string{"status": "archived"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerateLetter_Async(t *testing.T) {
	ts := newTestServer(t)

	unblock := make(chan struct{})
	ts.reply = func(context.Context, string) (string, error) {
		<-unblock
		return "Async letter", nil
	}

	rec := ts.do(t, http.MethodPost, "/api/v1/referral/letter/generate", nil)
	require.Equal(t, http.StatusAccepted, rec.Code)
	view := decodeBody[workflow.View](t, rec)
	assert.True(t, view.Generating)

	rec = ts.do(t, http.MethodPost, "/api/v1/referral/letter/generate", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	close(unblock)
	select {
	case r := <-ts.results:
		require.True(t, r.Success)
	case <-time.After(5 * time.Second):
		t.Fatal("generation did not finish")
	}

	view = decodeBody[workflow.View](t, ts.do(t, http.MethodGet, "/api/v1/state", nil))
	assert.False(t, view.Generating)
	require.NotNil(t, view.CurrentReferral)
	assert.Equal(t, "Async letter", view.CurrentReferral.ReferralLetter)
	assert.Equal(t, referral.StatusInProgress, view.CurrentReferral.Status)
}

func TestGenerateLetter_WaitFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.reply = func(context.Context, string) (string, error) { return "", errors.New("upstream down") }

	rec := ts.do(t, http.MethodPost, "/api/v1/referral/letter/generate?wait=true", nil)
	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body struct {
		Referral referral.Packet `json:"referral"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, letter.FailurePlaceholder, body.Referral.ReferralLetter)
	assert.Equal(t, referral.StatusDraft, body.Referral.Status)
}

func TestLifecycle_EditReadyComplete(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/referral/ready", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/referral/letter/generate?wait=true", nil).Code)

	rec = ts.do(t, http.MethodPut, "/api/v1/referral/letter", map[string]string{"text": "Edited letter"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Edited letter", decodeBody[referral.Packet](t, rec).ReferralLetter)

	rec = ts.do(t, http.MethodPut, "/api/v1/referral/letter", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/referral/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, referral.StatusReady, decodeBody[referral.Packet](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/referral/packet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	pkt := decodeBody[PacketResponse](t, rec)
	assert.Equal(t, "Edited letter", pkt.Packet.LetterText)
	assert.NotEmpty(t, pkt.Document.Sections)

	rec = ts.do(t, http.MethodGet, "/api/v1/referral/packet/email", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	email := decodeBody[EmailResponse](t, rec)
	assert.Contains(t, email.Mailto, "mailto:")
	assert.Contains(t, email.Subject, "Pediatric Cardiology")

	rec = ts.do(t, http.MethodGet, "/api/v1/referral/packet.pdf", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/referral/complete", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, referral.StatusSent, decodeBody[referral.Packet](t, rec).Status)

	rec = ts.do(t, http.MethodGet, "/api/v1/referrals/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]referral.Packet](t, rec), 1)

	rec = ts.do(t, http.MethodPost, "/api/v1/referral/selection/toggle", ToggleRequest{Category: "labs", ID: "lab-001"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/referral/packet", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestReset_RequiresConfirm(t *testing.T) {
	ts := newTestServer(t)
	require.Equal(t, http.StatusOK, ts.do(t, http.MethodPost, "/api/v1/notes/generate", nil).Code)

	rec := ts.do(t, http.MethodPost, "/api/v1/reset", map[string]bool{"confirm": false})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.True(t, ts.svc.View(context.Background()).NotesGenerated)

	rec = ts.do(t, http.MethodPost, "/api/v1/reset", ResetRequest{Confirm: true})
	require.Equal(t, http.StatusOK, rec.Code)
	view := decodeBody[workflow.View](t, rec)
	assert.False(t, view.NotesGenerated)
	assert.Nil(t, view.CurrentReferral)
}

func TestEvents_Stream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return ts.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	_, err = ts.svc.StartReferral(context.Background(), "")
	require.NoError(t, err)

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event: ReferralCreated")
}

type stubEventLog map[string][]*referral.Event

func (s stubEventLog) GetEvents(_ context.Context, id string) ([]*referral.Event, error) {
	return s[id], nil
}

func TestReferralEvents(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/referrals/ref-1/events", nil)
	assert.Equal(t, http.StatusNotImplemented, rec.Code)

	evt, err := referral.NewEvent("ref-1", referral.EventReferralCreated, referral.ReferralCreatedData{ReferralID: "ref-1"})
	require.NoError(t, err)
	handler := NewReferralHandler(ts.svc, nil, nil).WithEventLog(stubEventLog{"ref-1": {evt}})
	r := chi.NewRouter()
	r.Mount("/api/v1", handler.Routes())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/referrals/ref-1/events", nil)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decodeBody[[]referral.Event](t, rec)
	require.Len(t, events, 1)
	assert.Equal(t, evt.ID, events[0].ID)
}

func TestEvents_OutliveWriteTimeout(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewUnstartedServer(ts.router)
	srv.Config.WriteTimeout = 100 * time.Millisecond
	srv.Start()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/v1/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Eventually(t, func() bool { return ts.hub.Subscribers() == 1 }, time.Second, 10*time.Millisecond)
	time.Sleep(300 * time.Millisecond)
	require.NoError(t, ts.svc.Reset(context.Background()))

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	require.NoError(t, err)
	assert.Contains(t, string(buf[:n]), "event: StateReset")
}

func TestStateUnavailable_Maps503(t *testing.T) {
	h := NewReferralHandler(nil, nil, nil)
	rec := httptest.NewRecorder()
	h.domainError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/referral", nil),
		fmt.Errorf("%w: connection refused", referral.ErrStateUnavailable))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	h.domainError(rec, httptest.NewRequest(http.MethodPost, "/api/v1/referral/letter/generate", nil),
		referral.ErrReferralChanged)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
