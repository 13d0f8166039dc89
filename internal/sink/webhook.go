package sink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type webhookPayload struct {
	SessionID string    `json:"session_id"`
	Sequence  int       `json:"sequence"`
	Text      string    `json:"text"`
	EmittedAt time.Time `json:"emitted_at"`
}

type webhookSink struct {
	url       string
	client    *http.Client
	sessionID string
	seq       int
	clock     func() time.Time
}

// NewWebhook posts every sentence of one session as JSON to url.
func NewWebhook(url, sessionID string, client *http.Client) Sink {
	if client == nil {
		client = &http.Client{}
	}
	return &webhookSink{url: url, client: client, sessionID: sessionID, clock: time.Now}
}

func (s *webhookSink) Emit(ctx context.Context, text string) error {
	if s.url == "" {
		return nil
	}
	payload := webhookPayload{
		SessionID: s.sessionID,
		Sequence:  s.seq,
		Text:      text,
		EmittedAt: s.clock().UTC(),
	}
	s.seq++

	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if !isHTTPSuccessStatus(resp.StatusCode) {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

func isHTTPSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}
