package bedrock

import (
	"fmt"
	"net/http"
)

// FormatError reports a request that cannot be turned into a wire envelope.
// It is fatal to the call that produced it.
type FormatError struct {
	Reason string
}

func (e *FormatError) Error() string {
	return "bedrock: invalid request: " + e.Reason
}

// ProviderError reports a non-2xx answer from the model endpoint.
type ProviderError struct {
	Code       string
	Message    string
	StatusCode int
}

func (e *ProviderError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bedrock: provider error %s (status %d): %s", e.Code, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("bedrock: provider error (status %d): %s", e.StatusCode, e.Message)
}

// Transient reports whether the failure is a throttling or availability
// condition that warrants a connection refresh before the next retry.
func (e *ProviderError) Transient() bool {
	switch e.Code {
	case "ThrottlingException", "ServiceUnavailableException":
		return true
	}
	switch e.StatusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return true
	}
	return false
}

// MalformedResponseError reports a payload that does not carry text where the
// family contract says it should. Callers recover from it with the
// stringified raw payload.
type MalformedResponseError struct {
	Family Family
	Detail string
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("bedrock: malformed %s response: %s", e.Family, e.Detail)
}
