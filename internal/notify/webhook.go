// Package notify forwards deal and notification events to an HTTP webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/dealroom/backend/internal/events"
	"go.uber.org/zap"
)

const maxAttempts = 3

// Envelope is the body POSTed to the webhook.
type Envelope struct {
	Stream  string         `json:"stream"`
	Type    string         `json:"type"`
	DealID  string         `json:"deal_id,omitempty"`
	Payload map[string]any `json:"payload"`
	SentAt  time.Time      `json:"sent_at"`
}

type Forwarder struct {
	url    string
	client *http.Client
	retry  time.Duration
	log    *zap.Logger
}

func NewForwarder(url string, timeout time.Duration, log *zap.Logger) *Forwarder {
	return &Forwarder{
		url:    url,
		client: &http.Client{Timeout: timeout},
		retry:  500 * time.Millisecond,
		log:    log,
	}
}

// Forward posts one event. 5xx answers and transport errors are retried;
// 4xx answers are not.
func (f *Forwarder) Forward(ctx context.Context, stream string, event events.Event) error {
	body, err := json.Marshal(Envelope{
		Stream:  stream,
		Type:    event.Type,
		DealID:  event.DealID(),
		Payload: event.Payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = f.retry

	_, err = backoff.Retry(ctx, func() (int, error) {
		return f.post(ctx, body)
	},
		backoff.WithBackOff(bo),
		backoff.WithMaxTries(maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			f.log.Warn("webhook delivery failed, retrying",
				zap.String("type", event.Type),
				zap.Duration("in", next),
				zap.Error(err),
			)
		}),
	)
	return err
}

func (f *Forwarder) post(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return 0, backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return resp.StatusCode, fmt.Errorf("webhook returned %d", resp.StatusCode)
	case resp.StatusCode >= 300:
		return resp.StatusCode, backoff.Permanent(fmt.Errorf("webhook returned %d", resp.StatusCode))
	}
	return resp.StatusCode, nil
}

// Attach subscribes the forwarder to each stream. Delivery failures are
// logged and dropped.
func (f *Forwarder) Attach(ctx context.Context, sub events.Subscriber, streams ...string) error {
	for _, stream := range streams {
		err := sub.Subscribe(ctx, stream, func(event events.Event) {
			if err := f.Forward(ctx, stream, event); err != nil {
				f.log.Error("webhook delivery dropped",
					zap.String("stream", stream),
					zap.String("type", event.Type),
					zap.String("deal_id", event.DealID()),
					zap.Error(err),
				)
				return
			}
			f.log.Debug("event forwarded", zap.String("stream", stream), zap.String("type", event.Type))
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", stream, err)
		}
	}
	return nil
}
