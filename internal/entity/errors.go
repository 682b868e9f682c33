package entity

import "fmt"

// ValidationError is returned before any state is touched.
type ValidationError struct {
	Field  string
	Value  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
}

// NotFoundError is returned by operations that require an existing record.
type NotFoundError struct {
	Resource string
	Key      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

// CrawlError reports a failed fetch. The attempt has already been recorded
// when this is returned.
type CrawlError struct {
	URL          string
	ResponseCode int
	Err          error
}

func (e *CrawlError) Error() string {
	if e.ResponseCode != 0 {
		return fmt.Sprintf("crawl %s failed (status %d): %v", e.URL, e.ResponseCode, e.Err)
	}
	return fmt.Sprintf("crawl %s failed: %v", e.URL, e.Err)
}

func (e *CrawlError) Unwrap() error { return e.Err }

// StoreError wraps a persistence fault.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
