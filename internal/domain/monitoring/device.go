package monitoring

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/M-Affan01/HealthMonitor/internal/domain/vitals"
	"github.com/M-Affan01/HealthMonitor/internal/platform/apperr"
	"github.com/M-Affan01/HealthMonitor/internal/platform/auth"
	"github.com/M-Affan01/HealthMonitor/internal/platform/mqtt"
)

// DecodeDeviceReading turns a device message into a measurement. The
// patient comes from the payload or, failing that, the last topic segment
// (healthmonitor/vitals/<patient id>).
func DecodeDeviceReading(topic string, payload []byte) (*vitals.Measurement, error) {
	var body readingRequest
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, apperr.Validation("decode device reading: %v", err)
	}
	if body.PatientID == uuid.Nil {
		seg := topic[strings.LastIndex(topic, "/")+1:]
		id, err := uuid.Parse(seg)
		if err != nil {
			return nil, apperr.Validation("no patient id in payload or topic %q", topic)
		}
		body.PatientID = id
	}
	return body.measurement(), nil
}

// DeviceHandler ingests device readings as the system actor.
func DeviceHandler(svc *Service) mqtt.MessageHandler {
	device := auth.SystemActor("device")
	return func(ctx context.Context, topic string, payload []byte) error {
		m, err := DecodeDeviceReading(topic, payload)
		if err != nil {
			return err
		}
		_, err = svc.Ingest(ctx, device, m)
		return err
	}
}
