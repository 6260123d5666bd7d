package ir

import (
	"encoding/json"
	"sort"
	"strings"
	"time"
)

// Metadata contains request metadata
type Metadata struct {
	ID        string     `json:"id,omitempty"`
	Source    string     `json:"source,omitempty"` // curl, manual
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

// Request is the structured form of a curl command line. It is built once by
// the parser and is not mutated afterwards.
type Request struct {
	Metadata *Metadata `json:"metadata,omitempty"`
	Method   string    `json:"method"`
	URL      string    `json:"url"`
	Headers  Headers   `json:"headers"`
	Body     string    `json:"body"`
	UseHTTP2 bool      `json:"use_http2"`
}

// HasBody reports whether the request carries a non-empty body.
func (r *Request) HasBody() bool {
	return r.Body != ""
}

// Header is a single name/value pair.
type Header struct {
	Name  string
	Value string
}

// Headers maps header names to values. Names compare case-insensitively and
// keep the casing of the most recent Set.
type Headers struct {
	entries map[string]Header // keyed by lower-cased name
}

// NewHeaders creates an empty header map
func NewHeaders() Headers {
	return Headers{entries: make(map[string]Header)}
}

// Set stores value under name, replacing any value stored under a name that
// differs only in case.
func (h *Headers) Set(name, value string) {
	if h.entries == nil {
		h.entries = make(map[string]Header)
	}
	h.entries[strings.ToLower(name)] = Header{Name: name, Value: value}
}

// Get returns the value stored for name, ignoring case.
func (h Headers) Get(name string) (string, bool) {
	e, ok := h.entries[strings.ToLower(name)]
	return e.Value, ok
}

// Has reports whether name is present, ignoring case.
func (h Headers) Has(name string) bool {
	_, ok := h.entries[strings.ToLower(name)]
	return ok
}

// Len returns the number of distinct header names.
func (h Headers) Len() int {
	return len(h.entries)
}

// Entries returns the headers sorted by lower-cased name.
func (h Headers) Entries() []Header {
	keys := make([]string, 0, len(h.entries))
	for k := range h.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Header, 0, len(keys))
	for _, k := range keys {
		out = append(out, h.entries[k])
	}
	return out
}

// Clone returns an independent copy.
func (h Headers) Clone() Headers {
	c := NewHeaders()
	for k, v := range h.entries {
		c.entries[k] = v
	}
	return c
}

// MarshalJSON encodes the headers as a JSON object using the stored casing.
func (h Headers) MarshalJSON() ([]byte, error) {
	m := make(map[string]string, len(h.entries))
	for _, e := range h.entries {
		m[e.Name] = e.Value
	}
	return json.Marshal(m)
}

// UnmarshalJSON decodes a JSON object of header values.
func (h *Headers) UnmarshalJSON(data []byte) error {
	var m map[string]string
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	*h = NewHeaders()
	for name, value := range m {
		h.Set(name, value)
	}
	return nil
}
