package redpanda

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/drfirst/go-referral/internal/domain/referral"
)

type countingResetter struct {
	calls int
	ids   []string
}

func (r *countingResetter) ApplyRemoteReset(_ context.Context, evt *referral.Event) {
	r.calls++
	r.ids = append(r.ids, evt.ID)
}

func encode(t *testing.T, evt *referral.Event) *ConsumedMessage {
	t.Helper()
	data, err := json.Marshal(evt)
	require.NoError(t, err)
	return &ConsumedMessage{Topic: TopicReferralEvents, Value: data}
}

func TestResetListener(t *testing.T) {
	ctx := context.Background()
	target := &countingResetter{}
	l := NewResetListener("instance-a", target, nil)

	own, err := referral.NewEvent("", referral.EventStateReset, referral.StateResetData{})
	require.NoError(t, err)
	own.Source = "instance-a"
	require.NoError(t, l.Handle(ctx, encode(t, own)))
	assert.Equal(t, 0, target.calls)

	remote, err := referral.NewEvent("", referral.EventStateReset, referral.StateResetData{})
	require.NoError(t, err)
	remote.Source = "instance-b"
	require.NoError(t, l.Handle(ctx, encode(t, remote)))
	require.NoError(t, l.Handle(ctx, encode(t, remote)))
	assert.Equal(t, 1, target.calls)
	assert.Equal(t, []string{remote.ID}, target.ids)

	created, err := referral.NewEvent("ref-1", referral.EventReferralCreated, referral.ReferralCreatedData{ReferralID: "ref-1"})
	require.NoError(t, err)
	created.Source = "instance-b"
	require.NoError(t, l.Handle(ctx, encode(t, created)))
	assert.Equal(t, 1, target.calls)

	require.NoError(t, l.Handle(ctx, &ConsumedMessage{Value: []byte("not json")}))
	assert.Equal(t, 1, target.calls)
}

func TestHeaderCarrier(t *testing.T) {
	rec := &kgo.Record{}
	c := headerCarrier{rec}
	c.Set("traceparent", "a")
	c.Set("traceparent", "b")
	c.Set("tracestate", "x")

	assert.Equal(t, "b", c.Get("traceparent"))
	assert.Equal(t, "", c.Get("missing"))
	assert.ElementsMatch(t, []string{"traceparent", "tracestate"}, c.Keys())
	assert.Len(t, rec.Headers, 2)
}

func TestDefaultTopicConfigs(t *testing.T) {
	cfgs := DefaultTopicConfigs("")
	require.Len(t, cfgs, 2)
	assert.Equal(t, TopicReferralEvents, cfgs[0].Name)
	assert.Equal(t, TopicReferralDeadLetter, cfgs[1].Name)

	custom := DefaultTopicConfigs("clinic.events")
	assert.Equal(t, "clinic.events.dlq", custom[1].Name)
}

func TestMissingTopics(t *testing.T) {
	want := DefaultTopicConfigs("")

	all := missingTopics(want, nil)
	assert.Len(t, all, 2)

	some := missingTopics(want, []string{TopicReferralEvents, "other"})
	require.Len(t, some, 1)
	assert.Equal(t, TopicReferralDeadLetter, some[0].Name)

	assert.Empty(t, missingTopics(want, []string{TopicReferralDeadLetter, TopicReferralEvents}))
}
