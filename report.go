package sinktrace

import (
	"github.com/hazyhaar/sinktrace/callstack"
	"github.com/hazyhaar/sinktrace/driver"
	"github.com/hazyhaar/sinktrace/sinkstore"
)

// Callstack is the capture outcome of one session. Either Frames is
// populated or Error explains why no frames were captured; a timeout is a
// processed session with Error set, not a failed one.
type Callstack struct {
	Error  string                    `json:"error,omitempty"`
	Frames []callstack.FrameSnapshot `json:"frames,omitempty"`
}

// SessionResult is the immutable outcome of one debugging session. Success
// means the session was processed end to end, not that frames were captured.
type SessionResult struct {
	Index         int                  `json:"index"`
	Success       bool                 `json:"success"`
	Sink          sinkstore.Record     `json:"sink"`
	Callstack     *Callstack           `json:"callstack,omitempty"`
	ContextHandle driver.ContextHandle `json:"context_handle,omitempty"`
	Error         string               `json:"error,omitempty"`
}

// Report is the sole output of a trace run.
type Report struct {
	Canary        string          `json:"canary"`
	TotalFound    int             `json:"total_found"`
	Processed     int             `json:"processed"`
	Successful    int             `json:"successful"`
	WithCallstack int             `json:"with_callstack"`
	Results       []SessionResult `json:"results"`
}

// aggregate folds session results into the final report. Pure: no I/O, no
// side effects, deterministic for a given input.
func aggregate(canary string, totalFound int, results []SessionResult) *Report {
	rep := &Report{
		Canary:     canary,
		TotalFound: totalFound,
		Processed:  len(results),
		Results:    results,
	}
	for _, r := range results {
		if r.Success {
			rep.Successful++
		}
		if r.Callstack != nil && r.Callstack.Error == "" {
			rep.WithCallstack++
		}
	}
	return rep
}
