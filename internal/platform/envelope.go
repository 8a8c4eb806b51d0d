package platform

import "encoding/json"

// List endpoints on the platform have shipped two response shapes over time:
// a bare JSON array, and an envelope carrying the array under a nested field
// plus pagination metadata. normalizeList accepts both and degrades any
// unrecognized shape to an empty slice; a shape change must never take the
// console down.
func normalizeList(raw []byte) []json.RawMessage {
	// Bare array.
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err == nil {
		return nonNil(items)
	}

	var env struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(raw, &env); err != nil || len(env.Data) == 0 {
		return []json.RawMessage{}
	}

	// Envelope with array directly under "data".
	if err := json.Unmarshal(env.Data, &items); err == nil {
		return nonNil(items)
	}

	// Envelope with the array one level deeper: {"data":{"docs":[…],"pagination":…}}.
	var nested struct {
		Docs []json.RawMessage `json:"docs"`
	}
	if err := json.Unmarshal(env.Data, &nested); err == nil && nested.Docs != nil {
		return nested.Docs
	}

	return []json.RawMessage{}
}

func nonNil(items []json.RawMessage) []json.RawMessage {
	if items == nil {
		return []json.RawMessage{}
	}
	return items
}
