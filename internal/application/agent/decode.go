package agent

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/longregen/parallelproof/internal/domain"
)

// Shape records which accepted form a generation response arrived in.
type Shape int

const (
	// ShapeRecord is a single JSON object.
	ShapeRecord Shape = iota
	// ShapeListOfRecords is an array whose first element is an object.
	ShapeListOfRecords
	// ShapeWrapped is an array without a leading object; the raw text becomes
	// the optimized code with zero improvement.
	ShapeWrapped
)

func (s Shape) String() string {
	switch s {
	case ShapeListOfRecords:
		return "list"
	case ShapeWrapped:
		return "wrapped"
	default:
		return "record"
	}
}

// improvementFields are checked in order; the first non-empty value wins.
var improvementFields = []string{
	"improvement",
	"complexity_improvement",
	"memory_savings",
	"concurrency_improvement",
}

const defaultImprovement = "0%"

// Response is the canonical form of a generation response.
type Response struct {
	Shape         Shape
	OptimizedCode *string
	Explanation   string
	// Improvement is the raw value of the first non-empty improvement field,
	// or "0%".
	Improvement any
	Fields      map[string]any
}

// StripFences removes a surrounding markdown code fence, with or without a
// language tag.
func StripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimPrefix(s, "json")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// Decode normalizes raw generation output. Objects and arrays are accepted,
// also when embedded in prose. Anything else is ErrUndecodable.
func Decode(raw string) (*Response, error) {
	text := StripFences(raw)

	value, err := unmarshalLenient(text)
	if err != nil {
		return nil, domain.Wrap(domain.KindGeneration, "decode response", err)
	}

	switch v := value.(type) {
	case map[string]any:
		return fromRecord(ShapeRecord, v), nil
	case []any:
		if len(v) > 0 {
			if rec, ok := v[0].(map[string]any); ok {
				return fromRecord(ShapeListOfRecords, rec), nil
			}
		}
		code := text
		return &Response{
			Shape:         ShapeWrapped,
			OptimizedCode: &code,
			Explanation:   "Wrapped list result",
			Improvement:   defaultImprovement,
			Fields:        map[string]any{},
		}, nil
	default:
		return nil, domain.Wrap(domain.KindGeneration, "decode response",
			fmt.Errorf("%w: top-level %T", domain.ErrUndecodable, value))
	}
}

func unmarshalLenient(text string) (any, error) {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err == nil {
		return value, nil
	}

	// prose around the payload: decode the first complete object or array
	// and ignore whatever follows it
	for i := 0; i < len(text); i++ {
		if text[i] != '{' && text[i] != '[' {
			continue
		}
		var v any
		if err := json.NewDecoder(strings.NewReader(text[i:])).Decode(&v); err == nil {
			return v, nil
		}
	}
	return nil, domain.ErrUndecodable
}

func fromRecord(shape Shape, rec map[string]any) *Response {
	resp := &Response{Shape: shape, Fields: rec, Improvement: defaultImprovement}

	switch code := rec["optimized_code"].(type) {
	case nil:
	case string:
		resp.OptimizedCode = &code
	default:
		s := fmt.Sprint(code)
		resp.OptimizedCode = &s
	}

	if explanation, ok := rec["explanation"].(string); ok {
		resp.Explanation = explanation
	}

	for _, field := range improvementFields {
		if v, ok := rec[field]; ok && !isEmpty(v) {
			resp.Improvement = v
			break
		}
	}
	return resp
}

func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case float64:
		return t == 0
	case bool:
		return !t
	}
	return false
}
