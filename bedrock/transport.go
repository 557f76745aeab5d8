package bedrock

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

// Config holds connection settings for the Bedrock runtime endpoint.
type Config struct {
	// Region selects the regional endpoint when Endpoint is not set.
	Region string

	// APIKey is the bearer credential sent with every request.
	APIKey string

	// Endpoint overrides the default https://bedrock-runtime.{region}.amazonaws.com.
	Endpoint string

	// Timeout bounds a single network round trip. Defaults to 60s.
	Timeout time.Duration

	// RefreshWaitUnit scales the exponential wait before a connection
	// refresh. Defaults to one second.
	RefreshWaitUnit time.Duration
}

// ConfigFromEnv builds a Config from AWS_DEFAULT_REGION and
// AWS_BEDROCK_API_KEY, mirroring the credential environment the surrounding
// process is expected to provide.
func ConfigFromEnv() Config {
	region := os.Getenv("AWS_DEFAULT_REGION")
	if region == "" {
		region = "us-east-1"
	}
	return Config{
		Region: region,
		APIKey: os.Getenv("AWS_BEDROCK_API_KEY"),
	}
}

func (c Config) endpoint() string {
	if c.Endpoint != "" {
		return strings.TrimSuffix(c.Endpoint, "/")
	}
	return fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", c.Region)
}

func (c Config) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 60 * time.Second
}

func (c Config) refreshWaitUnit() time.Duration {
	if c.RefreshWaitUnit > 0 {
		return c.RefreshWaitUnit
	}
	return time.Second
}

type providerErrorBody struct {
	Message string `json:"message"`
}

// doInvoke performs exactly one network round trip.
func (c *Client) doInvoke(ctx context.Context, modelID string, body []byte) ([]byte, error) {
	target := fmt.Sprintf("%s/model/%s/invoke", c.cfg.endpoint(), url.PathEscape(modelID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("bedrock: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.session().Do(req)
	if err != nil {
		return nil, fmt.Errorf("bedrock: invoke %s: %w", modelID, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("bedrock: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, newProviderError(resp, raw)
	}
	return raw, nil
}

func newProviderError(resp *http.Response, raw []byte) *ProviderError {
	code := resp.Header.Get("X-Amzn-Errortype")
	// The error type header can carry a URI suffix after a colon.
	if i := strings.IndexByte(code, ':'); i >= 0 {
		code = code[:i]
	}
	msg := strings.TrimSpace(string(raw))
	var body providerErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		msg = body.Message
	}
	return &ProviderError{
		Code:       code,
		Message:    msg,
		StatusCode: resp.StatusCode,
	}
}
