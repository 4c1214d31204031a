// Copyright 2026 The Quarry Authors
// SPDX-License-Identifier: Apache-2.0

package b2

// apiGroup is the path segment shared by every B2 API operation.
const apiGroup = "b2api"

// apiVersion is the wire protocol version this package speaks.
const apiVersion = "v1"

// Bucket is one B2 bucket as reported by b2_list_buckets.
type Bucket struct {
	BucketID   string `json:"bucketId"`
	BucketName string `json:"bucketName"`
	BucketType string `json:"bucketType"`
}

// ListBucketsResponse is the payload of b2_list_buckets.
type ListBucketsResponse struct {
	Buckets []Bucket `json:"buckets"`
}

// listBucketsCompatible are the request versions ListBucketsResponse
// can parse.
var listBucketsCompatible = []string{"v1"}

// File is one stored file as reported by b2_list_file_names.
type File struct {
	FileID          string `json:"fileId"`
	FileName        string `json:"fileName"`
	ContentLength   int64  `json:"contentLength"`
	ContentSha1     string `json:"contentSha1"`
	ContentType     string `json:"contentType"`
	UploadTimestamp int64  `json:"uploadTimestamp"`
}

// ListFileNamesResponse is the payload of b2_list_file_names. A
// non-empty NextFileName means more files remain; pass it as the next
// request's StartFileName to continue.
type ListFileNamesResponse struct {
	Files        []File `json:"files"`
	NextFileName string `json:"nextFileName"`
}

// listFileNamesCompatible are the request versions
// ListFileNamesResponse can parse.
var listFileNamesCompatible = []string{"v1"}

// Download is the result of b2_download_file_by_id: the raw stored
// bytes of one file.
type Download struct {
	// FileID is the file that was requested.
	FileID string
	// Data is the file content exactly as stored.
	Data []byte
}

// downloadCompatible are the request versions the download response
// handling supports.
var downloadCompatible = []string{"v1"}
