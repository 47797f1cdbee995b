package interp

import (
	"encoding/json"
	"strconv"

	"github.com/dop251/goja"
)

// Display renders a statement's value the way a REPL echoes it:
// strings quoted, objects and arrays as JSON, everything else via its
// string conversion. Used only for expression-shaped statements.
func Display(v goja.Value) string {
	if goja.IsNull(v) {
		return "null"
	}
	exported := v.Export()
	switch exported.(type) {
	case string:
		return strconv.Quote(exported.(string))
	case map[string]any, []any:
		if b, err := json.Marshal(exported); err == nil {
			return string(b)
		}
	}
	return v.String()
}
