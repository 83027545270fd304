package reputation

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"call-screener/internal/config"
)

// Remote is the reputation service as seen by the lookup
type Remote interface {
	// GetReputation returns nil, nil when the service has no data for hash
	GetReputation(ctx context.Context, hash string) (*RemoteReputation, error)
	Report(ctx context.Context, hash, category string) error
	Correct(ctx context.Context, hash string) error
}

// RemoteReputation is the reputation service response body
type RemoteReputation struct {
	ConfidenceScore float64 `json:"confidence_score"`
	Category        string  `json:"category,omitempty"`
	ReportCount     int     `json:"report_count"`
	UniqueReporters int     `json:"unique_reporters"`
}

type reportRequest struct {
	NumberHash      string `json:"number_hash"`
	DeviceTokenHash string `json:"device_token_hash"`
	Category        string `json:"category,omitempty"`
}

// Client talks to the remote reputation service. Only hashes cross this boundary.
type Client struct {
	baseURL     string
	apiKey      string
	deviceToken string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a new reputation service client
func NewClient(cfg *config.ReputationConfig, logger *zap.Logger) *Client {
	sum := sha256.Sum256([]byte(cfg.DeviceToken))
	return &Client{
		baseURL:     cfg.BaseURL,
		apiKey:      cfg.APIKey,
		deviceToken: hex.EncodeToString(sum[:]),
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// GetReputation fetches the crowd reputation of hash
func (c *Client) GetReputation(ctx context.Context, hash string) (*RemoteReputation, error) {
	endpoint := fmt.Sprintf("%s/v1/reputation/%s?device=%s",
		c.baseURL, url.PathEscape(hash), url.QueryEscape(c.deviceToken))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var rep RemoteReputation
	if err := json.NewDecoder(resp.Body).Decode(&rep); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if rep.ConfidenceScore < 0 || rep.ConfidenceScore > 1 {
		return nil, fmt.Errorf("confidence score out of range: %v", rep.ConfidenceScore)
	}

	return &rep, nil
}

// Report submits a spam report for hash
func (c *Client) Report(ctx context.Context, hash, category string) error {
	return c.post(ctx, "/v1/report", reportRequest{
		NumberHash:      hash,
		DeviceTokenHash: c.deviceToken,
		Category:        category,
	})
}

// Correct withdraws this device's earlier report for hash
func (c *Client) Correct(ctx context.Context, hash string) error {
	return c.post(ctx, "/v1/correct", reportRequest{
		NumberHash:      hash,
		DeviceTokenHash: c.deviceToken,
	})
}

func (c *Client) post(ctx context.Context, path string, body reportRequest) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	c.logger.Debug("reputation submission accepted", zap.String("path", path))
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
}
