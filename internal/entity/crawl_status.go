package entity

import (
	"database/sql/driver"
	"fmt"
)

// Status is the crawl state of a page.
type Status uint8

const (
	StatusQueued Status = iota + 1
	StatusCrawling
	StatusCompleted
	StatusFailed
)

var statusNames = map[Status]string{
	StatusQueued:    "queued",
	StatusCrawling:  "crawling",
	StatusCompleted: "completed",
	StatusFailed:    "failed",
}

// transitions lists the legal next states for each state. A queued page that
// is never claimed is failed by the reconciliation sweep.
var transitions = map[Status][]Status{
	StatusQueued:    {StatusCrawling, StatusFailed},
	StatusCrawling:  {StatusCompleted, StatusFailed},
	StatusCompleted: {StatusCrawling},
	StatusFailed:    {StatusCrawling},
}

// Statuses returns every known status in lifecycle order.
func Statuses() []Status {
	return []Status{StatusQueued, StatusCrawling, StatusCompleted, StatusFailed}
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Status(%d)", uint8(s))
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	_, ok := statusNames[s]
	return ok
}

// Terminal reports whether a crawl attempt has finished in this state.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// CanTransition reports whether moving from one status to another is allowed.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ParseStatus maps a stored status name back to its Status.
func ParseStatus(name string) (Status, error) {
	for s, n := range statusNames {
		if n == name {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown crawl status %q", name)
}

func (s Status) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid crawl status %d", uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	parsed, err := ParseStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value stores the status by name.
func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot store invalid crawl status %d", uint8(s))
	}
	return s.String(), nil
}

func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	case nil:
		return fmt.Errorf("crawl status is null")
	default:
		return fmt.Errorf("cannot scan %T into crawl status", src)
	}
}
