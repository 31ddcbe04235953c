package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPublisher struct {
	events []Event
	err    error
}

func (r *recordingPublisher) Publish(_ context.Context, e Event) error {
	r.events = append(r.events, e)
	return r.err
}

func TestNew_EncodesPayload(t *testing.T) {
	e, err := New(RiskUpdated, map[string]int{"score": 35})
	require.NoError(t, err)

	assert.NotEmpty(t, e.ID)
	assert.Equal(t, RiskUpdated, e.Type)
	assert.False(t, e.Timestamp.IsZero())
	assert.JSONEq(t, `{"score":35}`, string(e.Data))
}

func TestNew_RejectsUnencodable(t *testing.T) {
	_, err := New(RiskUpdated, make(chan int))
	assert.Error(t, err)
}

func TestEvent_Topics(t *testing.T) {
	doc := "doc-1"
	alert, _ := New(AlertCreated, nil)
	alert = alert.ForPatient("p1", &doc)
	assert.Equal(t, []string{TopicAlerts, "patient:p1"}, alert.Topics())
	assert.Equal(t, "doc-1", alert.DoctorID)

	risk, _ := New(RiskUpdated, nil)
	risk = risk.ForPatient("p1", nil)
	assert.Equal(t, []string{"patient:p1"}, risk.Topics())
	assert.Empty(t, risk.DoctorID)

	th, _ := New(ThresholdsUpdated, nil)
	assert.Equal(t, []string{TopicThresholds}, th.Topics())
}

func TestFanout_DeliversToAllDespiteFailure(t *testing.T) {
	failing := &recordingPublisher{err: errors.New("redis down")}
	ok := &recordingPublisher{}
	f := NewFanout(zerolog.Nop(), failing, ok)

	e, _ := New(AlertCreated, map[string]string{"metric": "OXYGEN"})
	err := f.Publish(context.Background(), e)

	require.Error(t, err)
	assert.Len(t, failing.events, 1)
	require.Len(t, ok.events, 1)
	assert.Equal(t, e.ID, ok.events[0].ID)
}

func TestFanout_Add(t *testing.T) {
	f := NewFanout(zerolog.Nop())
	p := &recordingPublisher{}
	f.Add(p)

	e, _ := New(ThresholdsUpdated, nil)
	require.NoError(t, f.Publish(context.Background(), e))
	assert.Len(t, p.events, 1)
}

func TestEvent_JSONShape(t *testing.T) {
	e, _ := New(AlertCreated, map[string]string{"severity": "CRITICAL"})
	e = e.ForPatient("p9", nil)
	e.Severity = "CRITICAL"

	raw, err := json.Marshal(e)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "alert.created", decoded["type"])
	assert.Equal(t, "p9", decoded["patientId"])
	assert.Equal(t, "CRITICAL", decoded["severity"])
	assert.NotContains(t, decoded, "doctorId")
}
