package creem

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/densematrix-labs/ai-excuse-generator/internal/infra/httpclient"
)

// Client talks to the Creem checkout API. Only session creation is needed
// here; completion arrives through the signed webhook.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

type CheckoutSession struct {
	ID          string `json:"id"`
	CheckoutURL string `json:"checkout_url"`
}

type checkoutRequest struct {
	ProductID  string            `json:"product_id"`
	SuccessURL string            `json:"success_url,omitempty"`
	Metadata   map[string]string `json:"metadata"`
}

func NewClient(baseURL, apiKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpclient.New(timeout),
	}
}

// Configured reports whether the client has credentials to make real calls.
func (c *Client) Configured() bool {
	return c != nil && c.apiKey != "" && c.baseURL != ""
}

func (c *Client) CreateCheckout(ctx context.Context, productID, deviceID, successURL string) (CheckoutSession, error) {
	if !c.Configured() {
		return CheckoutSession{}, fmt.Errorf("creem client is not configured")
	}

	body, err := json.Marshal(checkoutRequest{
		ProductID:  productID,
		SuccessURL: successURL,
		Metadata: map[string]string{
			"device_id":  deviceID,
			"product_id": productID,
		},
	})
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("marshal checkout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkouts", bytes.NewReader(body))
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return CheckoutSession{}, fmt.Errorf("call creem checkout: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return CheckoutSession{}, fmt.Errorf("creem checkout returned status %d", resp.StatusCode)
	}

	var session CheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return CheckoutSession{}, fmt.Errorf("decode checkout response: %w", err)
	}
	if session.ID == "" || session.CheckoutURL == "" {
		return CheckoutSession{}, fmt.Errorf("creem checkout response is missing id or url")
	}

	return session, nil
}
