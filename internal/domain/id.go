package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"
)

// ID is an opaque record key. Remote backends assign integers or UUIDs while
// records created offline get a millisecond timestamp, so IDs are compared as
// strings and decoded from either JSON numbers or JSON strings.
type ID string

// String implements fmt.Stringer.
func (id ID) String() string { return string(id) }

// IsZero reports whether id is empty.
func (id ID) IsZero() bool { return id == "" }

// UnmarshalJSON accepts "abc", 123 and null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(b, &n); err != nil {
			return errors.New("domain: id must be a string or a number")
		}
		*id = ID(n.String())
		return nil
	}
}

// IDGenerator hands out time-based IDs for records created without a remote
// backend. IDs are unix milliseconds, bumped by one when two calls land in the
// same millisecond so they stay unique within the process.
type IDGenerator struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

// NewIDGenerator returns a generator using clock, or time.Now when nil.
func NewIDGenerator(clock func() time.Time) *IDGenerator {
	if clock == nil {
		clock = time.Now
	}
	return &IDGenerator{now: clock}
}

// Next returns a fresh ID.
func (g *IDGenerator) Next() ID {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := g.now().UnixMilli()
	if n <= g.last {
		n = g.last + 1
	}
	g.last = n
	return ID(strconv.FormatInt(n, 10))
}
