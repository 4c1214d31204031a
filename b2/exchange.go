// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/quarry-project/quarry/dispatch"
)

// DefaultAuthorizeBaseURL is the fixed endpoint for the authorization
// exchange. Every other operation uses the per-account base URLs the
// exchange returns.
const DefaultAuthorizeBaseURL = "https://api.backblazeb2.com"

// tokenValidity is how long B2 documents an authorization token as
// valid. The session subtracts its renewal margin from this.
const tokenValidity = 24 * time.Hour

// ExchangeConfig configures the credential exchange.
type ExchangeConfig struct {
	// BaseURL overrides DefaultAuthorizeBaseURL. Tests point this at a
	// local server.
	BaseURL string
	// HTTPClient executes the exchange request. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger
}

// NewExchange returns the ExchangeFunc for b2_authorize_account. The
// account identity travels as Basic credentials; the response carries
// the session token and the api/download base URLs for the account.
func NewExchange(config ExchangeConfig) dispatch.ExchangeFunc {
	baseURL := strings.TrimRight(config.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultAuthorizeBaseURL
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context, accountID, applicationKey string) (*dispatch.Authorization, error) {
		requestURL := baseURL + "/b2api/" + apiVersion + "/b2_authorize_account"
		request, err := http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil)
		if err != nil {
			return nil, fmt.Errorf("b2: building authorize request: %w", err)
		}
		credentials := base64.StdEncoding.EncodeToString([]byte(accountID + ":" + applicationKey))
		request.Header.Set("Authorization", "Basic "+credentials)

		response, err := httpClient.Do(request)
		if err != nil {
			return nil, fmt.Errorf("b2: authorize request failed: %w", err)
		}
		defer response.Body.Close()

		payload, err := io.ReadAll(io.LimitReader(response.Body, maxResponseSize))
		if err != nil {
			return nil, fmt.Errorf("b2: reading authorize response: %w", err)
		}
		if response.StatusCode < 200 || response.StatusCode >= 300 {
			return nil, fmt.Errorf("b2: authorize rejected: %w", errorFromBody(response.StatusCode, payload))
		}

		var document struct {
			AccountID               string `json:"accountId"`
			AuthorizationToken      string `json:"authorizationToken"`
			APIURL                  string `json:"apiUrl"`
			DownloadURL             string `json:"downloadUrl"`
			RecommendedPartSize     int64  `json:"recommendedPartSize"`
			AbsoluteMinimumPartSize int64  `json:"absoluteMinimumPartSize"`
		}
		if err := json.Unmarshal(payload, &document); err != nil {
			return nil, fmt.Errorf("b2: parsing authorize response: %w", err)
		}
		if document.AuthorizationToken == "" || document.APIURL == "" || document.DownloadURL == "" {
			return nil, fmt.Errorf("b2: authorize response missing token or base URLs")
		}

		logger.Debug("authorized b2 account", "account_id", document.AccountID)
		return &dispatch.Authorization{
			Token:       document.AuthorizationToken,
			APIURL:      strings.TrimRight(document.APIURL, "/"),
			DownloadURL: strings.TrimRight(document.DownloadURL, "/"),
			ValidFor:    tokenValidity,
		}, nil
	}
}
