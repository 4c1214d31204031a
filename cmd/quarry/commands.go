// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/quarry-project/quarry/b2"
	"github.com/quarry-project/quarry/lib/account"
)

func runLogin(args []string) error {
	var common commonFlags
	var keyFile string

	flagSet := pflag.NewFlagSet("quarry login", pflag.ContinueOnError)
	common.register(flagSet)
	flagSet.StringVar(&keyFile, "key-file", "", "read the application key from this file instead of prompting")
	parsed, err := parseFlags(flagSet, args)
	if err != nil || !parsed {
		return err
	}

	positional := flagSet.Args()
	if len(positional) != 1 {
		return &usageError{message: "usage: quarry login <account-id> [flags]"}
	}
	accountID := positional[0]

	applicationKey, err := readApplicationKey(keyFile)
	if err != nil {
		return err
	}

	cli, err := newClient(&common, false)
	if err != nil {
		return err
	}
	defer cli.close()

	// Verify before saving. A failed exchange is fatal inside
	// Authenticate, so reaching the save means the credentials work.
	cli.session.UpdateCredentials(accountID, applicationKey)
	cli.session.Authenticate(context.Background())

	credentials := account.Credentials{AccountID: accountID, ApplicationKey: applicationKey}
	if err := cli.store.Save(credentials); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Logged in as %s\n", accountID)
	fmt.Fprintf(os.Stderr, "Credentials saved to %s\n", cli.store.Path())
	return nil
}

// readApplicationKey reads the application key from a file, or prompts
// on the terminal with echo disabled.
func readApplicationKey(keyFile string) (string, error) {
	if keyFile != "" {
		data, err := os.ReadFile(keyFile)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", keyFile, err)
		}
		key := strings.TrimRight(string(data), "\r\n")
		if key == "" {
			return "", fmt.Errorf("%s is empty", keyFile)
		}
		return key, nil
	}

	stdinFileDescriptor := int(os.Stdin.Fd())
	if !term.IsTerminal(stdinFileDescriptor) {
		return "", &usageError{message: "no terminal available for the key prompt (use --key-file)"}
	}
	fmt.Fprint(os.Stderr, "Application key: ")
	keyBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading application key: %w", err)
	}
	if len(keyBytes) == 0 {
		return "", fmt.Errorf("application key is empty")
	}
	return string(keyBytes), nil
}

func runLogout(args []string) error {
	var common commonFlags

	flagSet := pflag.NewFlagSet("quarry logout", pflag.ContinueOnError)
	common.register(flagSet)
	parsed, err := parseFlags(flagSet, args)
	if err != nil || !parsed {
		return err
	}
	if positional := flagSet.Args(); len(positional) > 0 {
		return &usageError{message: "unexpected argument: " + positional[0]}
	}

	cfg, err := common.loadConfig()
	if err != nil {
		return err
	}
	accountPath := common.accountPath
	if accountPath == "" {
		accountPath = cfg.AccountFile
	}
	if accountPath == "" {
		accountPath, err = account.DefaultPath()
		if err != nil {
			return err
		}
	}
	if err := account.NewStore(accountPath).Clear(); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Credentials removed from %s\n", accountPath)
	return nil
}

func runBuckets(args []string) error {
	var common commonFlags

	flagSet := pflag.NewFlagSet("quarry buckets", pflag.ContinueOnError)
	common.register(flagSet)
	parsed, err := parseFlags(flagSet, args)
	if err != nil || !parsed {
		return err
	}
	if positional := flagSet.Args(); len(positional) > 0 {
		return &usageError{message: "unexpected argument: " + positional[0]}
	}

	cli, err := newClient(&common, true)
	if err != nil {
		return err
	}
	defer cli.close()

	type result struct {
		response *b2.ListBucketsResponse
		err      error
	}
	done := make(chan result, 1)
	credentials, err := cli.store.Load()
	if err != nil {
		return err
	}
	envelope, err := b2.NewListBucketsRequest(credentials.AccountID,
		func(response *b2.ListBucketsResponse) { done <- result{response: response} },
		func(err error) { done <- result{err: err} })
	if err != nil {
		return err
	}

	// Submitting before Authenticate exercises the queue: the request
	// waits in the pending queue and flushes once the token arrives.
	cli.session.Submit(envelope)
	cli.session.Authenticate(context.Background())

	outcome := <-done
	if outcome.err != nil {
		return outcome.err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tID\tTYPE")
	for _, bucket := range outcome.response.Buckets {
		fmt.Fprintf(writer, "%s\t%s\t%s\n", bucket.BucketName, bucket.BucketID, bucket.BucketType)
	}
	return writer.Flush()
}

func runFiles(args []string) error {
	var common commonFlags
	var startFileName string

	flagSet := pflag.NewFlagSet("quarry files", pflag.ContinueOnError)
	common.register(flagSet)
	flagSet.StringVar(&startFileName, "start", "", "resume listing from this file name")
	parsed, err := parseFlags(flagSet, args)
	if err != nil || !parsed {
		return err
	}

	positional := flagSet.Args()
	if len(positional) != 1 {
		return &usageError{message: "usage: quarry files <bucket-id> [flags]"}
	}
	bucketID := positional[0]

	cli, err := newClient(&common, true)
	if err != nil {
		return err
	}
	defer cli.close()
	cli.session.Authenticate(context.Background())

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "NAME\tID\tSIZE")

	type result struct {
		response *b2.ListFileNamesResponse
		err      error
	}
	for {
		done := make(chan result, 1)
		envelope, err := b2.NewListFileNamesRequest(bucketID,
			b2.ListFileNamesOptions{StartFileName: startFileName},
			func(response *b2.ListFileNamesResponse) { done <- result{response: response} },
			func(err error) { done <- result{err: err} })
		if err != nil {
			return err
		}
		cli.session.Submit(envelope)

		outcome := <-done
		if outcome.err != nil {
			return outcome.err
		}
		for _, file := range outcome.response.Files {
			fmt.Fprintf(writer, "%s\t%s\t%d\n", file.FileName, file.FileID, file.ContentLength)
		}
		if outcome.response.NextFileName == "" {
			break
		}
		startFileName = outcome.response.NextFileName
	}
	return writer.Flush()
}

func runFetch(args []string) error {
	var common commonFlags
	var outputPath string

	flagSet := pflag.NewFlagSet("quarry fetch", pflag.ContinueOnError)
	common.register(flagSet)
	flagSet.StringVarP(&outputPath, "output", "o", "", "write the file here instead of stdout")
	parsed, err := parseFlags(flagSet, args)
	if err != nil || !parsed {
		return err
	}

	positional := flagSet.Args()
	if len(positional) != 1 {
		return &usageError{message: "usage: quarry fetch <file-id> [flags]"}
	}
	fileID := positional[0]

	cli, err := newClient(&common, true)
	if err != nil {
		return err
	}
	defer cli.close()
	cli.session.Authenticate(context.Background())

	type result struct {
		download *b2.Download
		err      error
	}
	done := make(chan result, 1)
	envelope, err := b2.NewDownloadFileByIDRequest(fileID,
		func(download *b2.Download) { done <- result{download: download} },
		func(err error) { done <- result{err: err} })
	if err != nil {
		return err
	}
	cli.session.Submit(envelope)

	outcome := <-done
	if outcome.err != nil {
		return outcome.err
	}

	if outputPath == "" {
		_, err := os.Stdout.Write(outcome.download.Data)
		return err
	}
	if err := os.WriteFile(outputPath, outcome.download.Data, 0644); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "Wrote %d bytes to %s\n", len(outcome.download.Data), outputPath)
	return nil
}
