package domain

import (
	"net/http"

	"github.com/goccy/go-json"
)

// Response is the invocation result contract.
// Success carries FileKey and FileSize, failure carries a JSON-encoded Body.
type Response struct {
	Status   int    `json:"status"`
	FileKey  string `json:"file_key,omitempty"`
	FileSize int64  `json:"file_size,omitempty"`
	Body     string `json:"body,omitempty"`
}

// Created builds the 201 response for a stored PDF.
func Created(res ConversionResult) Response {
	return Response{Status: http.StatusCreated, FileKey: res.Key, FileSize: res.Size}
}

// BadRequest builds the 400 response; msg is JSON-encoded into Body.
func BadRequest(msg string) Response {
	body, err := json.Marshal(msg)
	if err != nil {
		body = []byte(`""`)
	}
	return Response{Status: http.StatusBadRequest, Body: string(body)}
}

// OK reports whether the response describes a stored PDF.
func (r Response) OK() bool {
	return r.Status == http.StatusCreated
}
