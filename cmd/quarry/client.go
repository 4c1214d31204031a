// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/quarry-project/quarry/b2"
	"github.com/quarry-project/quarry/dispatch"
	"github.com/quarry-project/quarry/lib/account"
	"github.com/quarry-project/quarry/lib/config"
)

// client bundles everything one subcommand invocation needs: the
// resolved config, the credentials store, and a session wired to the
// B2 transport and exchange.
type client struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *account.Store
	session *dispatch.Session
}

// newClient resolves config and credentials and builds the session.
// With requireAccount set, missing stored credentials are an error;
// login passes false because it supplies credentials itself.
func newClient(common *commonFlags, requireAccount bool) (*client, error) {
	cfg, err := common.loadConfig()
	if err != nil {
		return nil, err
	}
	logger := newCommandLogger(cfg.LogLevel)

	accountPath := common.accountPath
	if accountPath == "" {
		accountPath = cfg.AccountFile
	}
	if accountPath == "" {
		accountPath, err = account.DefaultPath()
		if err != nil {
			return nil, err
		}
	}
	store := account.NewStore(accountPath)

	credentials, err := store.Load()
	if err != nil {
		return nil, err
	}
	if requireAccount && credentials.Empty() {
		return nil, fmt.Errorf("no account configured; run \"quarry login <account-id>\" first")
	}

	httpClient := &http.Client{Timeout: cfg.API.Timeout}
	session := dispatch.NewSession(dispatch.Options{
		Workers:       cfg.Dispatch.Workers,
		RenewalMargin: cfg.Dispatch.RenewalMargin,
		Logger:        logger,
		Fatal: func(err error) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(dispatch.FatalExitCode(err))
		},
	})
	session.Initialize(
		b2.NewHTTPTransport(b2.TransportConfig{HTTPClient: httpClient, Logger: logger}),
		b2.NewExchange(b2.ExchangeConfig{
			BaseURL:    cfg.API.AuthorizeBaseURL,
			HTTPClient: httpClient,
			Logger:     logger,
		}),
	)
	if !credentials.Empty() {
		session.UpdateCredentials(credentials.AccountID, credentials.ApplicationKey)
	}

	return &client{cfg: cfg, logger: logger, store: store, session: session}, nil
}

func (c *client) close() {
	c.session.Close()
}
