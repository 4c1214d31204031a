// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quarry-project/quarry/dispatch"
)

// NewDownloadFileByIDRequest builds the envelope for
// b2_download_file_by_id. The envelope is download-flagged: the
// session resolves it against the download base URL and the response
// body is the stored file content, not JSON. Authenticated-only.
func NewDownloadFileByIDRequest(
	fileID string,
	onSuccess func(*Download),
	onFailure func(error),
) (*dispatch.Envelope, error) {
	spec := dispatch.Spec{
		Operation:     "b2_download_file_by_id",
		Group:         apiGroup,
		Version:       apiVersion,
		Method:        http.MethodPost,
		NeedsToken:    true,
		Download:      true,
		Authenticated: true,
		SendStates:    dispatch.States(dispatch.StateAuthenticated),
	}
	if err := dispatch.VerifyVersion(spec, downloadCompatible); err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		FileID string `json:"fileId"`
	}{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("b2: encoding download request: %w", err)
	}

	return dispatch.NewEnvelope(spec, body,
		func(payload []byte) error {
			onSuccess(&Download{FileID: fileID, Data: payload})
			return nil
		},
		onFailure,
	), nil
}
