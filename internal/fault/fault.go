// internal/fault/fault.go
package fault

import "errors"

// Failure kinds shared by every protocol layer.
// Concrete errors wrap exactly one of these so callers can classify
// with errors.Is without knowing the producing package.
var (
	ErrTransport = errors.New("transport failure")
	ErrFrame     = errors.New("frame validation failure")
	ErrLogger    = errors.New("logger protocol error")
	ErrChecksum  = errors.New("checksum mismatch")
	ErrMalformed = errors.New("malformed response")
)

// Status codes reported through the health snapshot.
// 0 means success; 1 is a generic, unclassified error.
const (
	CodeOK        uint16 = 0
	CodeGeneric   uint16 = 1
	CodeTransport uint16 = 10
	CodeFrame     uint16 = 20
	CodeLogger    uint16 = 30
	CodeChecksum  uint16 = 40
	CodeMalformed uint16 = 50
)

var kinds = []struct {
	err   error
	code  uint16
	label string
}{
	{ErrTransport, CodeTransport, "transport"},
	{ErrFrame, CodeFrame, "frame"},
	{ErrLogger, CodeLogger, "logger"},
	{ErrChecksum, CodeChecksum, "checksum"},
	{ErrMalformed, CodeMalformed, "malformed"},
}

// Code extracts a best-effort uint16 code from an error.
// Errors exposing Code() uint16 win; otherwise the kind decides.
func Code(err error) uint16 {
	if err == nil {
		return CodeOK
	}

	type coder interface{ Code() uint16 }

	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeGeneric
}

// Label returns a short, stable name for metrics and logs.
func Label(err error) string {
	if err == nil {
		return "ok"
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.label
		}
	}
	return "other"
}
