package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// HTTPGateway talks to the provider's REST API (one POST per outbound text).
type HTTPGateway struct {
	baseURL string
	client  *http.Client
}

func NewHTTPGateway() (*HTTPGateway, error) {
	baseURL := strings.TrimRight(os.Getenv("GATEWAY_BASE_URL"), "/")
	if baseURL == "" {
		return nil, errors.New("gateway: GATEWAY_BASE_URL is not set")
	}

	return &HTTPGateway{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 10 * time.Second},
	}, nil
}

func (g *HTTPGateway) SendText(ctx context.Context, creds Credentials, toPhone, body string) (string, error) {
	payload, err := json.Marshal(map[string]any{
		"to":   toPhone,
		"text": body,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/messages/text", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+creds.Token)

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode >= 300 {
		return "", errors.New("gateway: " + resp.Status + " body=" + string(raw))
	}

	var out struct {
		MessageID string `json:"message_id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if out.MessageID == "" {
		return "", errors.New("gateway: response missing message_id")
	}
	return out.MessageID, nil
}
