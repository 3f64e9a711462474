package api

import (
	"encoding/json"
	"fmt"
)

// parentKey is where Flatten stores the enclosing event of a child market.
const parentKey = "parentEvent"

// parentFields are copied from an event into each of its children.
var parentFields = []string{
	"topicId", "title", "rules", "cutoffTime", "labelName", "totalPrice", "volume", "volume24h",
}

// Flatten turns one event into its child markets, each carrying a copy of
// the event's fields under parentEvent. An event without a childList array
// is its own single child.
func Flatten(event json.RawMessage) ([]json.RawMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(event, &fields); err != nil {
		return nil, fmt.Errorf("couldn't decode event: %w", err)
	}

	parent := make(map[string]json.RawMessage, len(parentFields))
	for _, k := range parentFields {
		if v, ok := fields[k]; ok {
			parent[k] = v
		}
	}
	parentRaw, err := json.Marshal(parent)
	if err != nil {
		return nil, fmt.Errorf("couldn't encode parent event: %w", err)
	}

	var children []json.RawMessage
	if raw, ok := fields["childList"]; ok {
		if err := json.Unmarshal(raw, &children); err != nil {
			children = nil
		}
	}
	if children == nil {
		return []json.RawMessage{withParent(fields, parentRaw)}, nil
	}

	out := make([]json.RawMessage, 0, len(children))
	for _, ch := range children {
		var child map[string]json.RawMessage
		if err := json.Unmarshal(ch, &child); err != nil {
			// Keep it, Normalize turns it into a fallback record.
			out = append(out, ch)
			continue
		}
		out = append(out, withParent(child, parentRaw))
	}
	return out, nil
}

func withParent(fields map[string]json.RawMessage, parent json.RawMessage) json.RawMessage {
	rec := make(map[string]json.RawMessage, len(fields)+1)
	for k, v := range fields {
		if k == "childList" {
			continue
		}
		rec[k] = v
	}
	rec[parentKey] = parent
	// Values are already valid JSON, so this cannot fail.
	raw, _ := json.Marshal(rec)
	return raw
}
