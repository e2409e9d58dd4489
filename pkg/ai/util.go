package ai

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalFlexible parses model-generated JSON into the target, tolerating
// the usual failure modes: markdown code fences around the payload,
// double-encoded JSON strings, and structurally broken JSON that jsonrepair
// can fix.
func UnmarshalFlexible(input string, out any) error {
	input = stripCodeFence(strings.TrimSpace(input))

	if err := json.Unmarshal([]byte(input), out); err == nil {
		return nil
	}

	var asString string
	if err := json.Unmarshal([]byte(input), &asString); err == nil {
		asString = strings.TrimSpace(asString)
		if err := json.Unmarshal([]byte(asString), out); err == nil {
			return nil
		}
		input = asString
	}

	repaired, err := jsonrepair.JSONRepair(input)
	if err != nil {
		return fmt.Errorf("json repair failed: %w (input: %s)", err, input)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return fmt.Errorf("unmarshal failed after repair: input=%s repaired=%s", input, repaired)
	}
	return nil
}

// stripCodeFence removes a surrounding ``` or ```json fence if present.
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
