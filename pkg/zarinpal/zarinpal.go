// Package zarinpal is the online payment gateway used for invoice balances,
// speaking the ZarinPal v4 JSON API.
package zarinpal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Alijeyrad/medcenter_backend/config"
)

var (
	ErrPaymentFailed      = errors.New("zarinpal: payment failed or cancelled by user")
	ErrValidation         = errors.New("zarinpal: validation error")
	ErrAmountMismatch     = errors.New("zarinpal: amount does not match original request")
	ErrInvalidAuthority   = errors.New("zarinpal: invalid authority")
	ErrAuthorityNotFound  = errors.New("zarinpal: authority not found")
	ErrUnexpectedResponse = errors.New("zarinpal: unexpected response from gateway")
)

const (
	productionURL = "https://payment.zarinpal.com/pg"
	sandboxURL    = "https://sandbox.zarinpal.com/pg"
)

// Client is a lightweight ZarinPal HTTP client.
type Client struct {
	merchantID  string
	callbackURL string
	baseURL     string
	startPayURL string
	httpClient  *http.Client
}

// Verification is the gateway's answer to a verify call.
type Verification struct {
	RefID   int64
	CardPan string
	// AlreadyVerified is code 101: an earlier verify succeeded.
	AlreadyVerified bool
}

// New creates a Client from config. Uses sandbox endpoints when cfg.Sandbox is true.
func New(cfg config.ZarinPalConfig) *Client {
	root := productionURL
	if cfg.Sandbox {
		root = sandboxURL
	}
	return NewWithBaseURL(cfg, root)
}

// NewWithBaseURL points the client at root ("<root>/v4/...", "<root>/StartPay/").
func NewWithBaseURL(cfg config.ZarinPalConfig, root string) *Client {
	return &Client{
		merchantID:  cfg.MerchantID,
		callbackURL: cfg.CallbackURL,
		baseURL:     root + "/v4",
		startPayURL: root + "/StartPay/",
		httpClient:  &http.Client{Timeout: 30 * time.Second},
	}
}

// CallbackURL is the configured return address for the gateway.
func (c *Client) CallbackURL() string { return c.callbackURL }

type paymentRequest struct {
	MerchantID  string `json:"merchant_id"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency,omitempty"`
	Description string `json:"description"`
	CallbackURL string `json:"callback_url"`
}

type verifyRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     int64  `json:"amount"`
	Authority  string `json:"authority"`
}

type envelope[T any] struct {
	Data   T   `json:"data"`
	Errors any `json:"errors"`
}

// verifyCodes maps the gateway's negative verify codes onto sentinels.
var verifyCodes = map[int]error{
	-9:  ErrValidation,
	-50: ErrAmountMismatch,
	-51: ErrPaymentFailed,
	-54: ErrInvalidAuthority,
	-55: ErrAuthorityNotFound,
}

// RequestPayment opens a gateway session for an invoice balance and returns
// the authority and the StartPay URL the patient is redirected to. amount is
// in Rials for IRR and Tomans for IRT. An empty callbackURL uses the
// configured one.
func (c *Client) RequestPayment(ctx context.Context, amount int64, currency, desc, callbackURL string) (authority string, payURL string, err error) {
	if callbackURL == "" {
		callbackURL = c.callbackURL
	}
	var resp envelope[struct {
		Code      int    `json:"code"`
		Authority string `json:"authority"`
		Message   string `json:"message"`
	}]
	err = c.post(ctx, "/payment/request.json", paymentRequest{
		MerchantID:  c.merchantID,
		Amount:      amount,
		Currency:    currency,
		Description: desc,
		CallbackURL: callbackURL,
	}, &resp)
	if err != nil {
		return "", "", fmt.Errorf("zarinpal request: %w", err)
	}

	switch {
	case resp.Data.Code == -9:
		return "", "", ErrValidation
	case resp.Data.Code != 100:
		return "", "", fmt.Errorf("%w (code=%d, msg=%s)", ErrUnexpectedResponse, resp.Data.Code, resp.Data.Message)
	case resp.Data.Authority == "":
		return "", "", ErrUnexpectedResponse
	}
	return resp.Data.Authority, c.startPayURL + resp.Data.Authority, nil
}

// VerifyPayment confirms the captured amount after the patient returns from
// the gateway. Code 101 means an earlier verify already succeeded.
func (c *Client) VerifyPayment(ctx context.Context, authority string, amount int64) (*Verification, error) {
	var resp envelope[struct {
		Code    int    `json:"code"`
		RefID   int64  `json:"ref_id"`
		CardPan string `json:"card_pan"`
		Message string `json:"message"`
	}]
	err := c.post(ctx, "/payment/verify.json", verifyRequest{
		MerchantID: c.merchantID,
		Amount:     amount,
		Authority:  authority,
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("zarinpal verify: %w", err)
	}

	d := resp.Data
	switch d.Code {
	case 100, 101:
		return &Verification{RefID: d.RefID, CardPan: d.CardPan, AlreadyVerified: d.Code == 101}, nil
	}
	if err, ok := verifyCodes[d.Code]; ok {
		return nil, err
	}
	return nil, fmt.Errorf("%w (code=%d, msg=%s)", ErrUnexpectedResponse, d.Code, d.Message)
}

// post sends a JSON POST request to baseURL+path and decodes the JSON response into out.
func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
