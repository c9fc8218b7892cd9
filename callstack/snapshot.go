// Package callstack turns a debugger pause event into structured call-frame
// snapshots: location, scope bindings, evaluated diagnostics, and a source
// excerpt around the paused line.
//
// Extraction never aborts on partial failure. Every fallible sub-step
// (evaluate, property fetch, source fetch) degrades into a field-level error
// marker inside an otherwise complete snapshot; the only hard failure is a
// pause event that carries no decodable frames.
package callstack

import "encoding/json"

// Location is a 1-based script position, converted from the driver's 0-based
// line/column.
type Location struct {
	ScriptID string `json:"script_id"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// VarBinding is one variable visible in a scope.
type VarBinding struct {
	Type      string `json:"type"`
	Value     string `json:"value,omitempty"`
	ClassName string `json:"class_name,omitempty"`
}

// ScopeBinding holds the variables of one scope, or the error that prevented
// resolving them. Exactly one of Error/Vars is populated.
type ScopeBinding struct {
	Error string                `json:"error,omitempty"`
	Vars  map[string]VarBinding `json:"vars,omitempty"`
}

// SourceExcerpt is a window of script source around the paused line.
// Lines[0] is line StartLine; CurrentLine flags the paused line.
type SourceExcerpt struct {
	StartLine   int      `json:"start_line"`
	EndLine     int      `json:"end_line"`
	CurrentLine int      `json:"current_line"`
	Lines       []string `json:"lines"`
}

// FrameSnapshot is the extracted view of one paused call frame. Built once,
// read-only afterward.
type FrameSnapshot struct {
	FrameIndex           int                     `json:"frame_index"`
	FunctionName         string                  `json:"function_name"`
	Location             Location                `json:"location"`
	ScopeBindings        map[string]ScopeBinding `json:"scope_bindings,omitempty"`
	SourceExcerpt        *SourceExcerpt          `json:"source_excerpt,omitempty"`
	SourceError          string                  `json:"source_error,omitempty"`
	EvaluatedExpressions map[string]string       `json:"evaluated_expressions,omitempty"`
}

// MarshalSnapshot renders frames as indented JSON for CLI output.
func MarshalSnapshot(frames []FrameSnapshot) ([]byte, error) {
	return json.MarshalIndent(frames, "", "  ")
}
