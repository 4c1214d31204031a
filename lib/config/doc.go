// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Quarry commands.
//
// Configuration is loaded from a single YAML file specified by:
//   - QUARRY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery beyond the built-in
// defaults. Environment variables never override file values, so a
// given config file always produces the same effective configuration.
package config
