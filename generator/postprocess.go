package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var codeFence = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*\n(.*?)\n?```$")

// ExtractField validates raw against schema and decodes the named top-level
// field into dst.
func ExtractField(raw string, schema *Schema, field string, dst any) error {
	doc := stripCodeFence(strings.TrimSpace(raw))
	if doc == "" {
		return malformedError("model returned empty reply", nil)
	}
	if err := schema.Validate(doc); err != nil {
		return err
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(doc), &top); err != nil {
		return malformedError("reply is not a JSON object", err)
	}
	value, ok := top[field]
	if !ok {
		return malformedError(fmt.Sprintf("field %q missing", field), nil)
	}
	if err := json.Unmarshal(value, dst); err != nil {
		return malformedError(fmt.Sprintf("field %q has unexpected shape", field), err)
	}
	return nil
}

// ExtractText returns a free-text reply unchanged. Blank replies are
// malformed.
func ExtractText(raw string) (string, error) {
	if strings.TrimSpace(raw) == "" {
		return "", malformedError("model returned empty text", nil)
	}
	return raw, nil
}

// 部分兼容网关会把 JSON 包在 ``` 代码块里。
func stripCodeFence(s string) string {
	if m := codeFence.FindStringSubmatch(s); len(m) == 2 {
		return strings.TrimSpace(m[1])
	}
	return s
}
