package driver

import "encoding/json"

// PauseEvent is the driver-raw payload of a debugger pause. Line and column
// numbers are 0-based, exactly as the control channel reports them; the
// extractor converts to 1-based on output.
type PauseEvent struct {
	Reason string      `json:"reason"`
	Frames []CallFrame `json:"frames"`
}

// CallFrame is one stack frame of a pause event.
type CallFrame struct {
	CallFrameID  string       `json:"call_frame_id"`
	FunctionName string       `json:"function_name"`
	Location     Location     `json:"location"`
	ScopeChain   []Scope      `json:"scope_chain"`
	This         RemoteObject `json:"this"`
}

// Location is a 0-based script position.
type Location struct {
	ScriptID string `json:"script_id"`
	Line     int    `json:"line"`
	Column   int    `json:"column"`
}

// Scope is one entry of a frame's scope chain. Type follows the CDP scope
// taxonomy: global, local, closure, block, with, catch, module.
type Scope struct {
	Type   string       `json:"type"`
	Name   string       `json:"name,omitempty"`
	Object RemoteObject `json:"object"`
}

// RemoteObject mirrors the control channel's object descriptor. Value is set
// for primitives returned by value; ObjectID addresses the live object for
// follow-up GetProperties calls.
type RemoteObject struct {
	Type        string          `json:"type"`
	ClassName   string          `json:"class_name,omitempty"`
	Value       json.RawMessage `json:"value,omitempty"`
	Description string          `json:"description,omitempty"`
	ObjectID    string          `json:"object_id,omitempty"`
}

// Property is one own property of a remote object.
type Property struct {
	Name  string        `json:"name"`
	Value *RemoteObject `json:"value,omitempty"`
}

// ValueString renders the object's value for human consumption: the JSON
// value when present, otherwise the description.
func (o RemoteObject) ValueString() string {
	if len(o.Value) > 0 {
		var s string
		if err := json.Unmarshal(o.Value, &s); err == nil {
			return s
		}
		return string(o.Value)
	}
	return o.Description
}
