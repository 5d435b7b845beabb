package domain

import "fmt"

// ValidationError reports missing or blank user input. It is raised before any request is made.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// UploadError reports a failed or malformed ingestion response.
type UploadError struct {
	StatusCode int
	Err        error
}

func (e *UploadError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("upload failed (%d): %v", e.StatusCode, e.Err)
	}
	return fmt.Sprintf("upload failed: %v", e.Err)
}

func (e *UploadError) Unwrap() error { return e.Err }

// QueryError reports a failure of one query sub-request ("answer" or "search").
type QueryError struct {
	Op         string
	StatusCode int
	Err        error
}

func (e *QueryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s request failed (%d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s request failed: %v", e.Op, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
