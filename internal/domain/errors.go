package domain

import "errors"

var (
	// ErrNoSource signals that none of file_key, html_string or url was given.
	ErrNoSource = errors.New("no source in request")
	// ErrInvalidPayload signals a request body that cannot be decoded.
	ErrInvalidPayload = errors.New("invalid request payload")
	// ErrStorageFetch wraps any failure while downloading the source object.
	ErrStorageFetch = errors.New("failed to fetch source object")
	// ErrStorageStore wraps any failure while uploading the produced PDF.
	ErrStorageStore = errors.New("failed to store PDF")
	// ErrInvalidURL signals a url source that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("url must be an absolute http or https URL")
	// ErrRenderFailed signals that the renderer left no usable PDF behind.
	ErrRenderFailed = errors.New("renderer produced no PDF")
)

// User-facing messages. Causes behind MsgConversionFailed are only logged.
const (
	MsgNoSource         = `One of "file_key", "html_string" or "url" must be present.`
	MsgInvalidURL       = `"url" must be an absolute http or https URL.`
	MsgConversionFailed = "Failed to generate PDF from the given HTML file." +
		" Please check to make sure the file is valid HTML."
)
