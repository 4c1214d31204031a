// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/quarry-project/quarry/dispatch"
)

// MaxFileBatchSize is the largest number of file names requested per
// b2_list_file_names call.
const MaxFileBatchSize = 1000

// ListFileNamesOptions tunes a b2_list_file_names request.
type ListFileNamesOptions struct {
	// StartFileName resumes listing from a previous response's
	// NextFileName. Empty starts from the beginning.
	StartFileName string
	// MaxFileCount caps the batch size. Non-positive or larger than
	// MaxFileBatchSize means MaxFileBatchSize.
	MaxFileCount int
}

// NewListFileNamesRequest builds the envelope for b2_list_file_names
// over one bucket. Authenticated-only.
func NewListFileNamesRequest(
	bucketID string,
	options ListFileNamesOptions,
	onSuccess func(*ListFileNamesResponse),
	onFailure func(error),
) (*dispatch.Envelope, error) {
	spec := dispatch.Spec{
		Operation:     "b2_list_file_names",
		Group:         apiGroup,
		Version:       apiVersion,
		Method:        http.MethodPost,
		NeedsToken:    true,
		Authenticated: true,
		SendStates:    dispatch.States(dispatch.StateAuthenticated),
	}
	if err := dispatch.VerifyVersion(spec, listFileNamesCompatible); err != nil {
		return nil, err
	}

	maxFileCount := options.MaxFileCount
	if maxFileCount <= 0 || maxFileCount > MaxFileBatchSize {
		maxFileCount = MaxFileBatchSize
	}
	requestBody := struct {
		BucketID      string `json:"bucketId"`
		MaxFileCount  int    `json:"maxFileCount"`
		StartFileName string `json:"startFileName,omitempty"`
	}{
		BucketID:      bucketID,
		MaxFileCount:  maxFileCount,
		StartFileName: options.StartFileName,
	}
	body, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("b2: encoding list-file-names request: %w", err)
	}

	return dispatch.NewEnvelope(spec, body,
		func(payload []byte) error {
			var response ListFileNamesResponse
			if err := json.Unmarshal(payload, &response); err != nil {
				return err
			}
			onSuccess(&response)
			return nil
		},
		onFailure,
	), nil
}
