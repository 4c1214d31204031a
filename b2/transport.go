// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/quarry-project/quarry/dispatch"
)

// maxResponseSize bounds response body reads: 256 MB. JSON responses
// are orders of magnitude smaller; the bound exists so a pathological
// response cannot exhaust memory. Downloads share the bound because
// downloaded payloads are buffered before delivery.
const maxResponseSize int64 = 256 << 20

// TransportConfig configures an HTTPTransport.
type TransportConfig struct {
	// HTTPClient executes the requests. Nil means http.DefaultClient.
	HTTPClient *http.Client
	// Logger receives structured logs. Nil means slog.Default().
	Logger *slog.Logger
}

// HTTPTransport executes resolved dispatch calls against the B2 API.
type HTTPTransport struct {
	httpClient *http.Client
	logger     *slog.Logger
}

var _ dispatch.Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a transport for B2's HTTP API.
func NewHTTPTransport(config TransportConfig) *HTTPTransport {
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{httpClient: httpClient, logger: logger}
}

// Do executes the call. On 2xx the response payload is returned; any
// connection failure or non-2xx response becomes a
// *dispatch.TransportError.
func (t *HTTPTransport) Do(ctx context.Context, call *dispatch.Call) ([]byte, error) {
	var bodyReader io.Reader
	if call.Body != nil {
		bodyReader = bytes.NewReader(call.Body)
	}

	request, err := http.NewRequestWithContext(ctx, call.Method, call.URL, bodyReader)
	if err != nil {
		return nil, &dispatch.TransportError{Err: fmt.Errorf("building request: %w", err)}
	}
	if call.Body != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if call.Authorization != "" {
		// B2 authorization tokens go in the header verbatim, no
		// Bearer prefix.
		request.Header.Set("Authorization", call.Authorization)
	}
	if !call.Download {
		// Ask for gzip explicitly and decompress below. Setting the
		// header ourselves opts out of net/http's transparent
		// decompression. Downloads are excluded: their bytes must
		// arrive exactly as stored.
		request.Header.Set("Accept-Encoding", "gzip")
	}

	response, err := t.httpClient.Do(request)
	if err != nil {
		return nil, &dispatch.TransportError{Err: err}
	}
	defer response.Body.Close()

	body := io.Reader(response.Body)
	if strings.Contains(response.Header.Get("Content-Encoding"), "gzip") {
		gzipReader, err := gzip.NewReader(body)
		if err != nil {
			return nil, &dispatch.TransportError{Err: fmt.Errorf("opening gzip response: %w", err)}
		}
		defer gzipReader.Close()
		body = gzipReader
	}

	payload, err := io.ReadAll(io.LimitReader(body, maxResponseSize))
	if err != nil {
		return nil, &dispatch.TransportError{Err: fmt.Errorf("reading response: %w", err)}
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return payload, nil
	}

	t.logger.Debug("b2 rejected request",
		"method", call.Method,
		"url", call.URL,
		"status", response.StatusCode,
	)
	return nil, errorFromBody(response.StatusCode, payload)
}

// errorFromBody maps a non-2xx response to a *dispatch.TransportError.
// B2 error documents all share one JSON shape; a body that is not one
// (a proxy error page, say) is carried as the raw message.
func errorFromBody(status int, payload []byte) *dispatch.TransportError {
	var document struct {
		Status  int    `json:"status"`
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(payload, &document); err != nil || document.Code == "" {
		return &dispatch.TransportError{
			Status:  status,
			Code:    "unrecognized_error",
			Message: strings.TrimSpace(string(payload)),
		}
	}
	return &dispatch.TransportError{
		Status:  status,
		Code:    document.Code,
		Message: document.Message,
	}
}
