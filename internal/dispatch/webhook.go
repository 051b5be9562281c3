package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"remindd/internal/reminder"
)

// maxResponseBody caps how much of a webhook response is read.
const maxResponseBody = 64 << 10

type wecomMessage struct {
	MsgType string    `json:"msgtype"`
	Text    wecomText `json:"text"`
}

type wecomText struct {
	Content string `json:"content"`
}

type wecomReply struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// webhookEnvelope is the payload of generic webhook targets.
type webhookEnvelope struct {
	Text   string `json:"text"`
	SentAt string `json:"sent_at"`
}

type httpTransport struct {
	dispatcher *Dispatcher
}

func (h *httpTransport) deliverWeCom(ctx context.Context, t reminder.Target, text string) error {
	status, body, err := h.post(ctx, t.Address, wecomMessage{MsgType: "text", Text: wecomText{Content: text}})
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("wecom returned HTTP %d", status)
	}
	var reply wecomReply
	if err := json.Unmarshal(body, &reply); err != nil {
		return fmt.Errorf("wecom reply: %w", err)
	}
	if reply.ErrCode != 0 {
		return fmt.Errorf("wecom errcode %d: %s", reply.ErrCode, reply.ErrMsg)
	}
	return nil
}

func (h *httpTransport) deliverWebhook(ctx context.Context, t reminder.Target, text string) error {
	status, _, err := h.post(ctx, t.Address, webhookEnvelope{Text: text, SentAt: time.Now().UTC().Format(time.RFC3339)})
	if err != nil {
		return err
	}
	if status < 200 || status >= 300 {
		return fmt.Errorf("webhook returned HTTP %d", status)
	}
	return nil
}

func (h *httpTransport) post(ctx context.Context, address string, payload any) (int, []byte, error) {
	if err := validateURL(address); err != nil {
		return 0, nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal payload: %w", err)
	}
	cfg, _ := h.dispatcher.config()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, address, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", cfg.UserAgent)

	resp, err := h.dispatcher.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("post %s: %w", RedactURL(address), unwrapURLError(err))
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("read response: %w", err)
	}
	return resp.StatusCode, data, nil
}

func validateURL(raw string) error {
	if raw == "" {
		return errors.New("target address is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid target URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("target URL must use http or https scheme, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("target URL must include a host")
	}
	return nil
}

// unwrapURLError drops the *url.Error wrapper, whose message repeats the
// unredacted URL (WeCom keys travel in the query string).
func unwrapURLError(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return ue.Err
	}
	return err
}

// RedactURL hides credentials and query values of a webhook address for logs.
func RedactURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "<invalid-url>"
	}
	redacted := u.Redacted()
	if u.RawQuery == "" {
		return redacted
	}
	q := u.Query()
	for key := range q {
		q.Set(key, "REDACTED")
	}
	r, err := url.Parse(redacted)
	if err != nil {
		return redacted
	}
	r.RawQuery = q.Encode()
	return r.String()
}
