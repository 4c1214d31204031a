// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/quarry-project/quarry/dispatch"
	"github.com/quarry-project/quarry/lib/clock"
)

// testServer is a minimal in-memory B2: one account, fixture buckets
// and files, token checked on every data operation.
type testServer struct {
	token   string
	buckets []Bucket
	files   map[string][]File // bucketID -> files
	content map[string][]byte // fileID -> bytes
}

func (s *testServer) handler(t *testing.T, serverURL func() string) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/b2api/v1/b2_authorize_account", func(writer http.ResponseWriter, request *http.Request) {
		json.NewEncoder(writer).Encode(map[string]any{
			"accountId":          "A1234",
			"authorizationToken": s.token,
			"apiUrl":             serverURL(),
			"downloadUrl":        serverURL(),
		})
	})

	authorized := func(writer http.ResponseWriter, request *http.Request) bool {
		if request.Header.Get("Authorization") != s.token {
			writer.WriteHeader(http.StatusUnauthorized)
			fmt.Fprint(writer, `{"status":401,"code":"bad_auth_token","message":"bad token"}`)
			return false
		}
		return true
	}

	mux.HandleFunc("/b2api/v1/b2_list_buckets", func(writer http.ResponseWriter, request *http.Request) {
		if !authorized(writer, request) {
			return
		}
		json.NewEncoder(writer).Encode(ListBucketsResponse{Buckets: s.buckets})
	})

	mux.HandleFunc("/b2api/v1/b2_list_file_names", func(writer http.ResponseWriter, request *http.Request) {
		if !authorized(writer, request) {
			return
		}
		var body struct {
			BucketID     string `json:"bucketId"`
			MaxFileCount int    `json:"maxFileCount"`
		}
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Errorf("decoding list_file_names body: %v", err)
		}
		if body.MaxFileCount != MaxFileBatchSize {
			t.Errorf("maxFileCount = %d, want %d", body.MaxFileCount, MaxFileBatchSize)
		}
		json.NewEncoder(writer).Encode(ListFileNamesResponse{Files: s.files[body.BucketID]})
	})

	mux.HandleFunc("/b2api/v1/b2_download_file_by_id", func(writer http.ResponseWriter, request *http.Request) {
		if !authorized(writer, request) {
			return
		}
		var body struct {
			FileID string `json:"fileId"`
		}
		json.NewDecoder(request.Body).Decode(&body)
		content, ok := s.content[body.FileID]
		if !ok {
			writer.WriteHeader(http.StatusNotFound)
			fmt.Fprint(writer, `{"status":404,"code":"file_not_present","message":"no such file"}`)
			return
		}
		writer.Write(content)
	})

	return mux
}

func newAPITestSession(t *testing.T, fixtures *testServer) (*dispatch.Session, *clock.FakeClock) {
	t.Helper()

	var server *httptest.Server
	server = httptest.NewServer(fixtures.handler(t, func() string { return server.URL }))
	t.Cleanup(server.Close)

	fakeClock := clock.Fake(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	session := dispatch.NewSession(dispatch.Options{
		Workers: 1,
		Clock:   fakeClock,
		Logger:  discardLogger(),
		Fatal: func(err error) {
			t.Errorf("unexpected fatal: %v", err)
		},
	})
	t.Cleanup(session.Close)
	session.Initialize(
		NewHTTPTransport(TransportConfig{Logger: discardLogger()}),
		NewExchange(ExchangeConfig{BaseURL: server.URL, Logger: discardLogger()}),
	)
	return session, fakeClock
}

func TestFullExchangeFlow(t *testing.T) {
	fixtures := &testServer{
		token: "session-token-1",
		buckets: []Bucket{
			{BucketID: "b1", BucketName: "bucket-1", BucketType: "allPrivate"},
			{BucketID: "b2", BucketName: "bucket-2", BucketType: "allPrivate"},
		},
		files: map[string][]File{
			"b1": {
				{FileID: "f1b1", FileName: "b1 file 1"},
				{FileID: "f1b2", FileName: "b1 file 2"},
				{FileID: "f1b3", FileName: "b1 file 3"},
			},
			"b2": {
				{FileID: "f2b1", FileName: "b2 file 1"},
				{FileID: "f2b2", FileName: "b2 file 2"},
			},
		},
		content: map[string][]byte{
			"f1b1": []byte("archive contents"),
		},
	}
	session, _ := newAPITestSession(t, fixtures)
	session.UpdateCredentials("A1234", "K123456")

	// Submitted before authentication: must queue, then flush.
	bucketsDone := make(chan *ListBucketsResponse, 1)
	envelope, err := NewListBucketsRequest("A1234",
		func(response *ListBucketsResponse) { bucketsDone <- response },
		func(err error) { t.Errorf("list buckets failed: %v", err) })
	if err != nil {
		t.Fatalf("NewListBucketsRequest: %v", err)
	}
	session.Submit(envelope)
	if got := session.PendingCount(); got != 1 {
		t.Fatalf("PendingCount = %d, want 1", got)
	}

	session.Authenticate(context.Background())
	if got := session.CurrentState(); got != dispatch.StateAuthenticated {
		t.Fatalf("state = %s, want authenticated", got)
	}

	var buckets *ListBucketsResponse
	select {
	case buckets = <-bucketsDone:
	case <-time.After(5 * time.Second):
		t.Fatal("list buckets response never arrived")
	}
	if len(buckets.Buckets) != 2 || buckets.Buckets[0].BucketID != "b1" {
		t.Errorf("buckets = %+v", buckets.Buckets)
	}

	// Authenticated now: list files dispatches immediately.
	filesDone := make(chan *ListFileNamesResponse, 1)
	envelope, err = NewListFileNamesRequest("b1", ListFileNamesOptions{},
		func(response *ListFileNamesResponse) { filesDone <- response },
		func(err error) { t.Errorf("list file names failed: %v", err) })
	if err != nil {
		t.Fatalf("NewListFileNamesRequest: %v", err)
	}
	session.Submit(envelope)

	var files *ListFileNamesResponse
	select {
	case files = <-filesDone:
	case <-time.After(5 * time.Second):
		t.Fatal("list file names response never arrived")
	}
	if len(files.Files) != 3 || files.Files[0].FileID != "f1b1" {
		t.Errorf("files = %+v", files.Files)
	}

	downloadDone := make(chan *Download, 1)
	envelope, err = NewDownloadFileByIDRequest("f1b1",
		func(download *Download) { downloadDone <- download },
		func(err error) { t.Errorf("download failed: %v", err) })
	if err != nil {
		t.Fatalf("NewDownloadFileByIDRequest: %v", err)
	}
	session.Submit(envelope)

	select {
	case download := <-downloadDone:
		if string(download.Data) != "archive contents" {
			t.Errorf("download data = %q", download.Data)
		}
		if download.FileID != "f1b1" {
			t.Errorf("download file ID = %s", download.FileID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("download response never arrived")
	}
}

func TestDownloadMissingFileFailsEnvelope(t *testing.T) {
	fixtures := &testServer{token: "session-token-1", content: map[string][]byte{}}
	session, _ := newAPITestSession(t, fixtures)
	session.UpdateCredentials("A1234", "K123456")
	session.Authenticate(context.Background())

	failed := make(chan error, 1)
	envelope, err := NewDownloadFileByIDRequest("missing",
		func(*Download) { t.Error("success callback fired for a missing file") },
		func(err error) { failed <- err })
	if err != nil {
		t.Fatalf("NewDownloadFileByIDRequest: %v", err)
	}
	session.Submit(envelope)

	select {
	case err := <-failed:
		var transportErr *dispatch.TransportError
		if !errors.As(err, &transportErr) || transportErr.Code != "file_not_present" {
			t.Errorf("failure = %v, want file_not_present", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("failure callback never fired")
	}
}

func TestRenewalReusesFreshToken(t *testing.T) {
	fixtures := &testServer{
		token:   "session-token-1",
		buckets: []Bucket{{BucketID: "b1", BucketName: "bucket-1"}},
	}
	session, fakeClock := newAPITestSession(t, fixtures)
	session.UpdateCredentials("A1234", "K123456")
	session.Authenticate(context.Background())

	// The token is documented valid for 24h; with the default margin
	// the renewal fires before expiry and the session stays usable.
	fakeClock.Advance(24*time.Hour - dispatch.DefaultRenewalMargin)
	if got := session.CurrentState(); got != dispatch.StateAuthenticated {
		t.Fatalf("state after renewal = %s", got)
	}

	done := make(chan struct{})
	envelope, err := NewListBucketsRequest("A1234",
		func(*ListBucketsResponse) { close(done) },
		func(err error) { t.Errorf("list buckets failed after renewal: %v", err) })
	if err != nil {
		t.Fatalf("NewListBucketsRequest: %v", err)
	}
	session.Submit(envelope)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("request after renewal never completed")
	}
}
