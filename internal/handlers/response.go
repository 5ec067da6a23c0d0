package handlers

import (
	"encoding/json"
	"fmt"
)

// Response is the ["ok", cmd], ["ok", cmd, result] or ["error", cmd, msg]
// array returned to hosts.
type Response []any

// FormatResponse formats a dispatcher result for the host.
func FormatResponse(command string, result any, err error) Response {
	if err != nil {
		return Response{"error", command, err.Error()}
	}
	if result == nil {
		return Response{"ok", command}
	}
	return Response{"ok", command, result}
}

// OK reports whether the response is a success.
func (r Response) OK() bool {
	return len(r) > 0 && r[0] == "ok"
}

// String renders the response as JSON.
func (r Response) String() string {
	b, err := json.Marshal([]any(r))
	if err != nil {
		return fmt.Sprintf(`["error", %q, %q]`, r.command(), err.Error())
	}
	return string(b)
}

func (r Response) command() string {
	if len(r) > 1 {
		if s, ok := r[1].(string); ok {
			return s
		}
	}
	return ""
}
