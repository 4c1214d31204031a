// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quarry-project/quarry/dispatch"
)

// NewListBucketsRequest builds the envelope for b2_list_buckets.
// Authenticated-only: it queues until the session holds a valid token.
// A *dispatch.ProtocolError return means this build's request version
// has skewed from its response type and must be treated as fatal.
func NewListBucketsRequest(
	accountID string,
	onSuccess func(*ListBucketsResponse),
	onFailure func(error),
) (*dispatch.Envelope, error) {
	spec := dispatch.Spec{
		Operation:     "b2_list_buckets",
		Group:         apiGroup,
		Version:       apiVersion,
		Method:        http.MethodPost,
		NeedsToken:    true,
		Authenticated: true,
		SendStates:    dispatch.States(dispatch.StateAuthenticated),
	}
	if err := dispatch.VerifyVersion(spec, listBucketsCompatible); err != nil {
		return nil, err
	}

	body, err := json.Marshal(struct {
		AccountID string `json:"accountId"`
	}{AccountID: accountID})
	if err != nil {
		return nil, fmt.Errorf("b2: encoding list-buckets request: %w", err)
	}

	return dispatch.NewEnvelope(spec, body,
		func(payload []byte) error {
			var response ListBucketsResponse
			if err := json.Unmarshal(payload, &response); err != nil {
				return err
			}
			onSuccess(&response)
			return nil
		},
		onFailure,
	), nil
}
