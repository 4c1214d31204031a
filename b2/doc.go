// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package b2 binds the dispatch core to the Backblaze B2 API.
//
// [HTTPTransport] implements dispatch.Transport: it executes resolved
// calls over HTTP, asks for gzip on JSON endpoints and decompresses
// the answer itself, bounds response body reads, and maps connection
// failures and B2 error documents to *dispatch.TransportError.
//
// [NewExchange] builds the dispatch.ExchangeFunc for
// b2_authorize_account: Basic credentials in, session token and base
// URLs out, with the 24-hour validity window B2 documents for
// authorization tokens.
//
// The typed operations (NewListBucketsRequest, NewListFileNamesRequest,
// NewDownloadFileByIDRequest) each build a dispatch.Envelope carrying
// the operation's wire metadata and admission rule, verify the request
// version against the paired response type's supported set, and decode
// the raw payload into the typed response before invoking the caller's
// success callback.
package b2
