// Package webhook forwards critical alerts to an external paging endpoint.
// Payloads are signed with HMAC-SHA256 so receivers can verify the sender.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/M-Affan01/HealthMonitor/internal/platform/events"
)

const (
	SignatureHeader = "X-Webhook-Signature"
	EventIDHeader   = "X-Webhook-Event-ID"
)

// SignPayload computes an HMAC-SHA256 signature of the payload using the given secret,
// returning the hex-encoded result.
func SignPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature returns true when the hex-encoded signature matches the HMAC-SHA256
// of payload under the given secret.
func VerifySignature(payload []byte, secret, signature string) bool {
	expected := SignPayload(payload, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithRetryWait overrides the backoff between delivery attempts.
func WithRetryWait(wait, maxWait time.Duration) Option {
	return func(n *Notifier) {
		n.client.SetRetryWaitTime(wait).SetRetryMaxWaitTime(maxWait)
	}
}

// WithQueueSize sets how many pending deliveries are buffered.
func WithQueueSize(size int) Option {
	return func(n *Notifier) { n.queue = make(chan events.Event, size) }
}

// Notifier is an events.Publisher that POSTs every CRITICAL alert.created
// event to a fixed URL. Delivery runs on a background worker so a slow
// receiver never delays ingestion.
type Notifier struct {
	url    string
	secret string
	client *resty.Client
	queue  chan events.Event
	logger zerolog.Logger
}

func NewNotifier(url, secret string, logger zerolog.Logger, opts ...Option) *Notifier {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1*time.Second).
		SetRetryMaxWaitTime(5*time.Second).
		SetHeader("Content-Type", "application/json").
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	n := &Notifier{
		url:    url,
		secret: secret,
		client: client,
		queue:  make(chan events.Event, 256),
		logger: logger,
	}
	for _, o := range opts {
		o(n)
	}
	return n
}

// Wants reports whether the event is forwarded.
func Wants(e events.Event) bool {
	return e.Type == events.AlertCreated && e.Severity == "CRITICAL"
}

// Publish queues matching events. A full queue drops the event with a log
// line rather than blocking the caller.
func (n *Notifier) Publish(_ context.Context, e events.Event) error {
	if !Wants(e) {
		return nil
	}
	select {
	case n.queue <- e:
		return nil
	default:
		return fmt.Errorf("webhook queue full, dropped event %s", e.ID)
	}
}

// Run delivers queued events until ctx is cancelled.
func (n *Notifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-n.queue:
			if err := n.Deliver(ctx, e); err != nil {
				n.logger.Error().Err(err).
					Str("event_id", e.ID).
					Str("patient_id", e.PatientID).
					Msg("critical alert webhook delivery failed")
			}
		}
	}
}

// Deliver signs and POSTs one event, retrying transport errors and 5xx
// responses.
func (n *Notifier) Deliver(ctx context.Context, e events.Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	resp, err := n.client.R().
		SetContext(ctx).
		SetHeader(SignatureHeader, "sha256="+SignPayload(payload, n.secret)).
		SetHeader(EventIDHeader, e.ID).
		SetBody(payload).
		Post(n.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode())
	}

	n.logger.Debug().
		Str("event_id", e.ID).
		Int("status", resp.StatusCode()).
		Dur("latency", resp.Time()).
		Msg("critical alert webhook delivered")
	return nil
}
