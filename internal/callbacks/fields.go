package callbacks

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"caseflow/internal/types"
)

// field reads a dot path from the case data.
func field(data types.CaseData, path string) gjson.Result {
	raw, err := json.Marshal(data)
	if err != nil {
		return gjson.Result{}
	}
	return gjson.GetBytes(raw, path)
}

// setField writes value at a dot path, creating intermediate objects.
func setField(data types.CaseData, path string, value any) {
	keys := strings.Split(path, ".")
	node := map[string]any(data)
	for _, key := range keys[:len(keys)-1] {
		next, ok := node[key].(map[string]any)
		if !ok {
			if cd, isCase := node[key].(types.CaseData); isCase {
				next = cd
			} else {
				next = map[string]any{}
				node[key] = next
			}
		}
		node = next
	}
	node[keys[len(keys)-1]] = value
}
