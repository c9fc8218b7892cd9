package browser

import (
	"encoding/json"

	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/sinktrace/driver"
)

// convertPause maps a CDP pause event to the driver wire model. Positions
// stay 0-based; the extractor owns the 1-based conversion.
func convertPause(ev *proto.DebuggerPaused) driver.PauseEvent {
	out := driver.PauseEvent{Reason: string(ev.Reason)}

	for _, cf := range ev.CallFrames {
		if cf == nil {
			continue
		}
		frame := driver.CallFrame{
			CallFrameID:  string(cf.CallFrameID),
			FunctionName: cf.FunctionName,
		}
		if cf.Location != nil {
			frame.Location = driver.Location{
				ScriptID: string(cf.Location.ScriptID),
				Line:     cf.Location.LineNumber,
			}
			if cf.Location.ColumnNumber != nil {
				frame.Location.Column = *cf.Location.ColumnNumber
			}
		}
		if cf.This != nil {
			frame.This = convertRemoteObject(cf.This)
		}
		for _, sc := range cf.ScopeChain {
			if sc == nil {
				continue
			}
			scope := driver.Scope{Type: string(sc.Type), Name: sc.Name}
			if sc.Object != nil {
				scope.Object = convertRemoteObject(sc.Object)
			}
			frame.ScopeChain = append(frame.ScopeChain, scope)
		}
		out.Frames = append(out.Frames, frame)
	}
	return out
}

func convertRemoteObject(obj *proto.RuntimeRemoteObject) driver.RemoteObject {
	out := driver.RemoteObject{
		Type:        string(obj.Type),
		ClassName:   obj.ClassName,
		Description: obj.Description,
		ObjectID:    string(obj.ObjectID),
	}
	if !obj.Value.Nil() {
		if raw, err := obj.Value.MarshalJSON(); err == nil {
			out.Value = json.RawMessage(raw)
		}
	}
	return out
}

func exceptionText(details *proto.RuntimeExceptionDetails) string {
	if details.Exception != nil && details.Exception.Description != "" {
		return details.Exception.Description
	}
	return details.Text
}
