// Package email is the outbound email capability (§4.I step 3): a single
// Sender interface over whatever HTTP-based vendor is configured, mirroring
// the search package's capability-interface shape so the delivery worker
// never depends on a concrete vendor client.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/briefloop/researchcore/errs"
)

// Message is the outbound payload the delivery worker builds after
// rendering the stored markdown (§4.I step 2).
type Message struct {
	To       string
	Subject  string
	HTMLBody string
}

// Result reports what the vendor accepted.
type Result struct {
	OK bool
	ID string
}

// Sender is the narrow capability delivery needs; no example repo in the
// retrieved pack imports a vendor email SDK from real compiled source (a
// sendgrid-go reference exists only in a standalone go.mod "manifest" file
// under other_examples/, never exercised by actual code), so the real
// implementation here follows the codebase's own established convention
// for third-party HTTP APIs (search/serper.go, search/brave.go): a plain
// net/http.Client against a JSON HTTP API, not a vendor SDK import.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// Client is the real Sender: a generic JSON email-vendor API taking
// {from, to, subject, html}, matching the shape of common transactional
// email HTTP APIs (Resend/SendGrid/Postmark all accept this same JSON
// envelope with only field-name differences it would need vendor-specific
// tuning to pick between).
type Client struct {
	apiKey      string
	fromAddress string
	endpoint    string
	client      *http.Client
}

func NewClient(apiKey, fromAddress string) *Client {
	return &Client{
		apiKey:      apiKey,
		fromAddress: fromAddress,
		endpoint:    "https://api.resend.com/emails",
		client:      &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (c *Client) Send(ctx context.Context, msg Message) (Result, error) {
	body, err := json.Marshal(sendRequest{From: c.fromAddress, To: msg.To, Subject: msg.Subject, HTML: msg.HTMLBody})
	if err != nil {
		return Result{}, errs.Wrap(errs.Validation, err, "email: encode request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, errs.Wrap(errs.EmailFailure, err, "email: build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return Result{}, errs.Wrap(errs.Transient, err, "email: send")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return Result{}, errs.Newf(errs.EmailFailure, "email: vendor status %d: %s", resp.StatusCode, string(b))
	}

	var sr sendResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return Result{}, errs.Wrap(errs.ParseFormat, err, "email: decode response")
	}
	return Result{OK: true, ID: sr.ID}, nil
}

var _ Sender = (*Client)(nil)
