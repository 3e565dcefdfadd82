package handlers

import (
	"encoding/json"
	"strings"
)

// truthyJSON reports whether an opaque payload field was actually supplied.
// Required fields follow loose-truthiness: absent fields and the JSON falsy
// literals (null, empty string, zero, false) are all rejected.
func truthyJSON(m json.RawMessage) bool {
	switch strings.TrimSpace(string(m)) {
	case "", "null", `""`, "0", "false":
		return false
	}
	return true
}
