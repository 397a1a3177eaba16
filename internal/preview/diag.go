package preview

import "github.com/coreman2200/wledmatrix/internal/output"

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

// Code identifies what a diagnostic is about; the /diag client keys on it.
type Code string

const (
	CodeFlushFailed Code = "FLUSH.FAILED" // not a transport error, e.g. encoding
	CodeFlushHTTP   Code = "FLUSH.HTTP"
	CodeFlushUDP    Code = "FLUSH.UDP"
	CodeFlushOK     Code = "FLUSH.OK"
	CodePatternDone Code = "PATTERN.DONE"
)

// FlushCode maps a transport kind to its diagnostic code.
func FlushCode(k output.Kind) Code {
	switch k {
	case output.KindHTTP:
		return CodeFlushHTTP
	case output.KindUDP:
		return CodeFlushUDP
	default:
		return CodeFlushFailed
	}
}

// Diagnostic is one /diag message. FrameID and T are stamped by the hub:
// the last frame the controller received when the event was reported.
type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Code     Code           `json:"code"`
	Summary  string         `json:"summary"`
	Detail   string         `json:"detail,omitempty"`
	Causes   []string       `json:"likely_causes,omitempty"`
	Fixes    []string       `json:"suggested_fixes,omitempty"`
	Evidence map[string]any `json:"evidence,omitempty"`

	FrameID uint64 `json:"frame_id"`
	T       int64  `json:"t"`
}
