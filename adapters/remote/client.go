package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/satriahrh/voicechat/domain"
)

const fallbackAPIErrorMessage = "API request failed"

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// PostJSON posts in as JSON and decodes a 2xx response into out.
// Failures come back as domain errors: transport problems and deadline
// expiry as network_failure, non-2xx and undecodable bodies as remote_api_error
// carrying the remote error.message when there is one.
func PostJSON(ctx context.Context, client *http.Client, url string, header http.Header, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return NetworkError(ctx, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return NetworkError(ctx, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return APIError(resp.StatusCode, respBody)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return domain.NewError(domain.KindRemoteAPIError, "Invalid response from API", err)
	}
	return nil
}

// APIError builds a remote_api_error from a non-2xx response body
func APIError(status int, body []byte) error {
	message := fallbackAPIErrorMessage
	var apiErr apiErrorResponse
	if json.Unmarshal(body, &apiErr) == nil && apiErr.Error.Message != "" {
		message = apiErr.Error.Message
	}
	return domain.NewError(domain.KindRemoteAPIError, message, fmt.Errorf("status %d", status))
}

// NetworkError classifies a transport failure, reporting deadline expiry as a timeout
func NetworkError(ctx context.Context, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewError(domain.KindNetworkFailure, "Request timed out", err)
	}
	var timeout interface{ Timeout() bool }
	if errors.As(err, &timeout) && timeout.Timeout() {
		return domain.NewError(domain.KindNetworkFailure, "Request timed out", err)
	}
	return domain.NewError(domain.KindNetworkFailure, "", err)
}
