// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package account persists B2 account credentials on disk.
//
// Credentials live in a single JSON file (comments permitted, so the
// file can be annotated by hand) under the user's config directory.
// The file is created with mode 0600: the application key is a secret
// and must not be readable by other users.
package account
