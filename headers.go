package webserve

import "strings"

// Headers is an ordered HTTP header list. Unlike a plain map, it preserves
// insertion order so the composer's framing pass can walk headers in the
// order handlers added them.
type Headers struct {
	names  []string
	values map[string]string
}

// NewHeaders returns an empty Headers.
func NewHeaders() Headers {
	return Headers{values: map[string]string{}}
}

// Set sets name to value, case-insensitively. If name was already present
// its value is overwritten in place; otherwise it's appended at the end.
func (h *Headers) Set(name, value string) {
	if h.values == nil {
		h.values = map[string]string{}
	}

	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		h.names = append(h.names, name)
	}
	h.values[key] = value
}

// Get returns the value of name and whether it was present.
func (h Headers) Get(name string) (string, bool) {
	v, ok := h.values[strings.ToLower(name)]
	return v, ok
}

// Del removes name.
func (h *Headers) Del(name string) {
	key := strings.ToLower(name)
	if _, ok := h.values[key]; !ok {
		return
	}
	delete(h.values, key)
	for i, n := range h.names {
		if strings.ToLower(n) == key {
			h.names = append(h.names[:i], h.names[i+1:]...)
			break
		}
	}
}

// Each calls f for every header in insertion order.
func (h Headers) Each(f func(name, value string)) {
	for _, n := range h.names {
		f(n, h.values[strings.ToLower(n)])
	}
}

// Len returns the number of headers.
func (h Headers) Len() int {
	return len(h.names)
}
