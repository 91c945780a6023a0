// Package gateway isolates all interaction with the Paystack payment gateway:
// outbound transaction calls (initialize, verify) and inbound webhook
// signature cryptography. Nothing else in the application talks HTTP to the
// gateway or touches the signing secret.
//
// Error semantics:
//   - ErrUnavailable wraps transport-level failures (network errors, non-2xx
//     responses, undecodable bodies). Callers may retry these.
//   - ErrRejected wraps business-level refusals reported by the gateway in an
//     otherwise well-formed response. Callers must not retry these blindly;
//     the message is safe to surface to the end user.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"
)

// DefaultBaseURL is the public Paystack API endpoint.
const DefaultBaseURL = "https://api.paystack.co"

var (
	// ErrUnavailable indicates a transport-level failure talking to the
	// gateway. The operation may be retried by the caller.
	ErrUnavailable = errors.New("payment gateway unavailable")

	// ErrRejected indicates the gateway explicitly refused the operation.
	// Retrying with the same input will fail identically.
	ErrRejected = errors.New("payment gateway rejected request")
)

// Client is a thin Paystack API client. The zero value is not usable; build
// one with New. All calls honor the provided context and the configured
// request timeout.
type Client struct {
	baseURL   string
	secretKey string
	httpc     *http.Client
}

// New constructs a Client for the given base URL and secret key. An empty
// baseURL falls back to DefaultBaseURL. The timeout bounds every request;
// values <= 0 default to 15s so a wedged gateway cannot hang a handler.
func New(baseURL, secretKey string, timeout time.Duration) *Client {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		httpc:     &http.Client{Timeout: timeout},
	}
}

// InitializeRequest carries the fields needed to open a transaction.
// Amount is in major currency units; the client converts to subunits.
type InitializeRequest struct {
	Amount      float64
	Currency    string
	Reference   string
	Email       string
	CallbackURL string
}

// InitializeResult is the subset of the gateway response the application
// needs to redirect the buyer.
type InitializeResult struct {
	AuthorizationURL string
	AccessCode       string
	Reference        string
}

// VerifyResult is the normalized outcome of a transaction lookup.
// RawPayload preserves the gateway's data object byte-for-byte for the audit
// trail on the payment row.
type VerifyResult struct {
	Success    bool
	Status     string
	Amount     int64 // subunits, as reported by the gateway
	RawPayload []byte
}

// envelope is the common Paystack response shape: a boolean status, a
// human-readable message, and an endpoint-specific data object.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize opens a transaction with the gateway and returns the hosted
// checkout URL the buyer must be redirected to.
func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body := map[string]any{
		"email":     req.Email,
		"amount":    toSubunits(req.Amount),
		"currency":  req.Currency,
		"reference": req.Reference,
	}
	if req.CallbackURL != "" {
		body["callback_url"] = req.CallbackURL
	}

	env, err := c.post(ctx, "/transaction/initialize", body)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decoding initialize data: %v", ErrUnavailable, err)
	}
	if data.AuthorizationURL == "" {
		return nil, fmt.Errorf("%w: initialize response missing authorization_url", ErrRejected)
	}
	return &InitializeResult{
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
		Reference:        data.Reference,
	}, nil
}

// Verify fetches the authoritative state of a transaction by reference.
func (c *Client) Verify(ctx context.Context, reference string) (*VerifyResult, error) {
	env, err := c.get(ctx, "/transaction/verify/"+reference)
	if err != nil {
		return nil, err
	}

	var data struct {
		Status string `json:"status"`
		Amount int64  `json:"amount"`
	}
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: decoding verify data: %v", ErrUnavailable, err)
	}
	return &VerifyResult{
		Success:    data.Status == "success",
		Status:     data.Status,
		Amount:     data.Amount,
		RawPayload: append([]byte(nil), env.Data...),
	}, nil
}

// post issues an authenticated JSON POST and decodes the response envelope.
func (c *Client) post(ctx context.Context, path string, body any) (*envelope, error) {
	buf, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrUnavailable, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// get issues an authenticated GET and decodes the response envelope.
func (c *Client) get(ctx context.Context, path string) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return c.do(req)
}

// do executes the request and maps the outcome onto the package error
// taxonomy. A well-formed body with status=false is a rejection even when the
// HTTP status is 2xx; a non-2xx status is a rejection only when the gateway
// included a decodable refusal, otherwise it is treated as unavailability.
func (c *Client) do(req *http.Request) (*envelope, error) {
	req.Header.Set("Authorization", "Bearer "+c.secretKey)

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if decodeErr == nil && env.Message != "" && resp.StatusCode < 500 {
			return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
		}
		return nil, fmt.Errorf("%w: http %d", ErrUnavailable, resp.StatusCode)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: decoding response: %v", ErrUnavailable, decodeErr)
	}
	if !env.Status {
		if env.Message == "" {
			env.Message = "request declined"
		}
		return nil, fmt.Errorf("%w: %s", ErrRejected, env.Message)
	}
	return &env, nil
}

// toSubunits converts a major-unit amount to the integral subunit amount the
// gateway expects (e.g. KES → cents). Rounded, not truncated, so 49.999
// charges 5000 and not 4999.
func toSubunits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
