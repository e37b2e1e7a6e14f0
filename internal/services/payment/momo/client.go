package momo

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	// Collection API endpoints
	tokenEndpoint        = "/collection/token/"
	requestToPayEndpoint = "/collection/v1_0/requesttopay"
	transactionEndpoint  = "/collection/v1_0/requesttopay/%s"
)

// Provider raw status vocabulary.
const (
	providerStatusSuccessful = "SUCCESSFUL"
	providerStatusFailed     = "FAILED"
	providerStatusRejected   = "REJECTED"
)

var (
	// ErrUnauthorized indicates a bad API user/key pair (401).
	ErrUnauthorized = errors.New("momo: unauthorized")

	// ErrForbidden indicates the subscription or access is not provisioned (403).
	ErrForbidden = errors.New("momo: access forbidden")

	// ErrUnavailable indicates a network failure or provider 5xx.
	ErrUnavailable = errors.New("momo: provider unavailable")
)

// ClientConfig carries the provider credentials and target environment for a Client.
type ClientConfig struct {
	BaseURL           string
	APIUserID         string
	APIKey            string
	SubscriptionKey   string
	TargetEnvironment string
}

// Client is the MTN Mobile Money Collection API client. It is constructed
// explicitly with its configuration; there is no process-global instance.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
	log        *logrus.Entry
}

// NewClient creates a new MTN Mobile Money API client
func NewClient(cfg ClientConfig, log *logrus.Entry) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		log:        log,
	}
}

// TokenResponse represents the OAuth token response
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// GetToken exchanges the configured API credentials for a short-lived bearer
// token. Tokens are fetched fresh per payment operation and never cached.
func (c *Client) GetToken(ctx context.Context) (*TokenResponse, error) {
	c.log.WithFields(logrus.Fields{
		"api_user_present":         c.cfg.APIUserID != "",
		"api_key_present":          c.cfg.APIKey != "",
		"subscription_key_present": c.cfg.SubscriptionKey != "",
	}).Debug("requesting collection token")

	auth := base64.StdEncoding.EncodeToString([]byte(c.cfg.APIUserID + ":" + c.cfg.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+tokenEndpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Basic "+auth)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "token exchange")
	}

	var tokenResp TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return nil, err
	}

	return &tokenResp, nil
}

// RequestToPayRequest represents the request to pay payload
type RequestToPayRequest struct {
	Amount       string `json:"amount"`
	Currency     string `json:"currency"`
	ExternalID   string `json:"externalId"`
	PayerMessage string `json:"payerMessage"`
	PayeeNote    string `json:"payeeNote"`
	Payer        Payer  `json:"payer"`
}

// Payer represents the payer information
type Payer struct {
	PartyIDType string `json:"partyIdType"`
	PartyID     string `json:"partyId"`
}

// RequestToPay initiates a payment request to a mobile money user. The
// reference id is caller-generated and sent as the X-Reference-Id header; the
// provider correlates later status queries by it.
func (c *Client) RequestToPay(ctx context.Context, referenceID string, request RequestToPayRequest) error {
	token, err := c.GetToken(ctx)
	if err != nil {
		return err
	}

	reqBody, err := json.Marshal(request)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+requestToPayEndpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return err
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("X-Reference-Id", referenceID)
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return classifyStatus(resp, "request to pay")
	}

	return nil
}

// TransactionStatus represents the provider-side status of a transaction
type TransactionStatus struct {
	Amount                 string `json:"amount"`
	Currency               string `json:"currency"`
	ExternalID             string `json:"externalId"`
	Payer                  Payer  `json:"payer"`
	PayerMessage           string `json:"payerMessage"`
	PayeeNote              string `json:"payeeNote"`
	Status                 string `json:"status"`
	Reason                 string `json:"reason,omitempty"`
	FinancialTransactionID string `json:"financialTransactionId,omitempty"`
}

// GetTransactionStatus queries the provider for the status of a request to pay.
func (c *Client) GetTransactionStatus(ctx context.Context, referenceID string) (*TransactionStatus, error) {
	token, err := c.GetToken(ctx)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(transactionEndpoint, referenceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+endpoint, nil)
	if err != nil {
		return nil, err
	}

	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	req.Header.Set("X-Target-Environment", c.cfg.TargetEnvironment)
	req.Header.Set("Ocp-Apim-Subscription-Key", c.cfg.SubscriptionKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp, "transaction status")
	}

	var status TransactionStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, err
	}

	return &status, nil
}

// classifyStatus maps provider HTTP responses onto the client error taxonomy.
func classifyStatus(resp *http.Response, op string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: %s failed: %s", ErrUnauthorized, op, string(body))
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: %s failed: %s", ErrForbidden, op, string(body))
	case resp.StatusCode >= 500:
		return fmt.Errorf("%w: %s failed with status %d: %s", ErrUnavailable, op, resp.StatusCode, string(body))
	default:
		return fmt.Errorf("%s failed: %s, status: %d", op, string(body), resp.StatusCode)
	}
}
