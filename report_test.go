package sinktrace

import (
	"reflect"
	"testing"
)

func TestAggregate(t *testing.T) {
	results := []SessionResult{
		{Index: 0, Success: true, Callstack: &Callstack{Frames: nil}},
		{Index: 1, Success: true, Callstack: &Callstack{Error: "Timeout waiting for pause"}},
		{Index: 2, Success: false, Error: "bridge: agent unreachable"},
	}

	rep := aggregate("CANARY", 7, results)

	if rep.Canary != "CANARY" || rep.TotalFound != 7 {
		t.Errorf("header = %q/%d", rep.Canary, rep.TotalFound)
	}
	if rep.Processed != 3 || rep.Successful != 2 || rep.WithCallstack != 1 {
		t.Errorf("counts = processed %d successful %d with_callstack %d, want 3/2/1",
			rep.Processed, rep.Successful, rep.WithCallstack)
	}
}

func TestAggregateIsPure(t *testing.T) {
	results := []SessionResult{{Index: 0, Success: true}}
	a := aggregate("C", 1, results)
	b := aggregate("C", 1, results)
	if !reflect.DeepEqual(a, b) {
		t.Errorf("same input produced different reports:\n%+v\n%+v", a, b)
	}
	if results[0].Index != 0 || !results[0].Success {
		t.Error("aggregate mutated its input")
	}
}

func TestAggregateEmpty(t *testing.T) {
	rep := aggregate("C", 0, nil)
	if rep.Processed != 0 || rep.Successful != 0 || rep.WithCallstack != 0 {
		t.Errorf("empty aggregate = %+v", rep)
	}
}
