package monitoring

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/M-Affan01/HealthMonitor/internal/domain/alert"
	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
)

func TestDecodeDeviceReading(t *testing.T) {
	pid := uuid.New()

	m, err := DecodeDeviceReading("healthmonitor/vitals/"+pid.String(), []byte(`{"heartRate":72,"oxygenSaturation":97}`))
	require.NoError(t, err)
	assert.Equal(t, pid, m.PatientID)
	assert.Equal(t, 72.0, *m.HeartRate)

	other := uuid.New()
	m, err = DecodeDeviceReading("healthmonitor/vitals/"+pid.String(), []byte(`{"patientId":"`+other.String()+`"}`))
	require.NoError(t, err)
	assert.Equal(t, other, m.PatientID, "payload wins over topic")

	m, err = DecodeDeviceReading("healthmonitor/vitals/"+pid.String(), []byte(`{"id":"`+other.String()+`","recordedBy":"dr-house","heartRate":70}`))
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, m.ID)
	assert.Empty(t, m.RecordedBy)

	_, err = DecodeDeviceReading("healthmonitor/vitals/unknown", []byte(`{"heartRate":72}`))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = DecodeDeviceReading("healthmonitor/vitals/"+pid.String(), []byte(`not json`))
	assert.ErrorIs(t, err, apperr.ErrValidation)
}

func TestDeviceHandler_IngestsAsSystem(t *testing.T) {
	h := newHarness(t)
	handle := DeviceHandler(h.svc)

	err := handle(context.Background(), "healthmonitor/vitals/"+h.patient.ID.String(), []byte(`{"bloodGlucose":45}`))
	require.NoError(t, err)
	require.Len(t, h.db.alerts, 1)
	assert.Equal(t, alert.MetricGlucose, h.db.alerts[0].Metric)
	assert.Equal(t, "device", h.db.vitals[0].RecordedBy)

	err = handle(context.Background(), "healthmonitor/vitals/"+uuid.NewString(), []byte(`{"heartRate":70}`))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
