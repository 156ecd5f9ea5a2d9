package boundary

import (
	"sync"
	"unicode/utf8"
)

// String owns a UTF-8 buffer. Copies of a String share the buffer and its
// release state, so the buffer is freed once no matter which copy frees it.
type String struct {
	buf *stringBuf
}

type stringBuf struct {
	data  []byte
	mu    sync.Mutex
	freed bool
}

// NewString copies s into a new owned buffer.
func NewString(s string) String {
	return String{buf: &stringBuf{data: []byte(s)}}
}

// StringFromBytes copies b into a new owned buffer. Invalid UTF-8 sequences
// are replaced with U+FFFD.
func StringFromBytes(b []byte) String {
	if !utf8.Valid(b) {
		b = []byte(string([]rune(string(b))))
	}
	data := make([]byte, len(b))
	copy(data, b)
	return String{buf: &stringBuf{data: data}}
}

// Valid reports whether the string holds a buffer that was not freed yet.
func (s String) Valid() bool {
	if s.buf == nil {
		return false
	}
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	return !s.buf.freed
}

// String returns a Go copy of the contents, "" once freed.
func (s String) String() string {
	if s.buf == nil {
		return ""
	}
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	if s.buf.freed {
		return ""
	}
	return string(s.buf.data)
}

// Bytes returns a copy of the raw buffer, nil once freed.
func (s String) Bytes() []byte {
	if s.buf == nil {
		return nil
	}
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	if s.buf.freed {
		return nil
	}
	out := make([]byte, len(s.buf.data))
	copy(out, s.buf.data)
	return out
}

// Len returns the buffer length in bytes.
func (s String) Len() int {
	if s.buf == nil {
		return 0
	}
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	if s.buf.freed {
		return 0
	}
	return len(s.buf.data)
}

// Free releases the buffer. It returns true for the call that actually
// released it and false for every later call.
func (s String) Free() bool {
	if s.buf == nil {
		return false
	}
	s.buf.mu.Lock()
	defer s.buf.mu.Unlock()
	if s.buf.freed {
		return false
	}
	s.buf.freed = true
	s.buf.data = nil
	return true
}
