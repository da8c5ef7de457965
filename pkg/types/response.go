// Package types holds the JSON bodies shared by handlers, the SSE stream
// and their tests.
package types

// Body is every 2xx JSON response. NextCursor is set only on listings that
// have another page.
type Body struct {
	Data       any    `json:"data"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// APIError is the public face of a failed request. Details carries field
// errors for validation failures and is omitted otherwise.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Failure is every non-2xx JSON response.
type Failure struct {
	Error APIError `json:"error"`
}
