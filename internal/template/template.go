// Package template renders Liquid templates against the current contents of
// a run context.
//
// Supported syntax is the Liquid family: {{ name }}, dotted paths such as
// {{ a.b }}, {% if %}/{% else %}/{% endif %}, {% for x in items %} loops and
// filters such as {{ name | default: 'x' }}. Undefined variables render as
// the empty string; malformed templates fail with a TEMPLATE_ERROR. An
// opening {{ or {% without its closing }} or %} is malformed too (text
// inside {% raw %} is not checked).
//
// Before rendering, every artifact is normalized:
//
//   - nil becomes ""
//   - strings pass through
//   - booleans become "true" / "false". Both are non-empty strings, so
//     {% if flag %} takes the true branch for false as well; compare
//     explicitly with {% if flag == 'true' %}
//   - integers are formatted in base 10, floats in the shortest form that
//     round-trips ("1.5", "2", "0.001")
//   - maps with string keys and slices keep their structure so paths and
//     loops can reach into them; their leaves are normalized by the same rules
//   - any other value (structs, typed maps) is converted through its JSON
//     encoding and then normalized
//
// Interpolating a composite directly:
//
//   - a map renders as compact JSON of its normalized form with keys
//     sorted, so {{ cfg }} with {"b": 2, "a": "x"} gives {"a":"x","b":"2"}
//   - a list renders its elements one after another with no separator
//     (Liquid's rule), so ["p", 3] gives p3 and a list of maps gives the
//     maps' JSON back to back; use {{ list | join: ', ' }} or
//     {{ list | json }} for a separated form
//
// The json filter gives the canonical string form of any value: compact
// JSON of the normalized value with map keys sorted.
//
// Bindings are rebuilt on every call. Nothing is cached between calls, so a
// template rendered later in a run sees everything earlier steps stored.
package template

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/osteele/liquid"

	rerrors "github.com/stevehiehn/recipe-executor/internal/errors"
	"github.com/stevehiehn/recipe-executor/internal/runctx"
)

var engine = newEngine()

func newEngine() *liquid.Engine {
	e := liquid.NewEngine()
	e.RegisterFilter("json", func(v any) string {
		data, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(data)
	})
	return e
}

// Render renders text against the context as it is right now. Text without
// template delimiters is returned unchanged.
func Render(text string, ctx *runctx.Context) (string, error) {
	if !HasSyntax(text) {
		return text, nil
	}
	if err := checkDelimiters(text); err != nil {
		return "", rerrors.NewTemplate(text, err)
	}
	out, err := engine.ParseAndRenderString(text, Bindings(ctx))
	if err != nil {
		return "", rerrors.NewTemplate(text, err)
	}
	return out, nil
}

// checkDelimiters reports the first {{ or {% that is never closed. Liquid
// itself passes such text through literally.
func checkDelimiters(text string) error {
	for i := 0; i < len(text); {
		open := nextOpener(text, i)
		if open < 0 {
			return nil
		}
		opener, closer := text[open:open+2], "}}"
		if opener == "{%" {
			closer = "%}"
		}
		end := strings.Index(text[open+2:], closer)
		if end < 0 {
			return fmt.Errorf("unterminated %q at offset %d", opener, open)
		}
		end += open + 2
		i = end + 2
		if opener == "{%" && tagName(text[open+2:end]) == "raw" {
			endraw := findEndRaw(text, i)
			if endraw < 0 {
				return fmt.Errorf("unterminated raw block at offset %d", open)
			}
			i = endraw
		}
	}
	return nil
}

func nextOpener(text string, from int) int {
	a := strings.Index(text[from:], "{{")
	b := strings.Index(text[from:], "{%")
	switch {
	case a < 0 && b < 0:
		return -1
	case a < 0:
		return from + b
	case b < 0:
		return from + a
	}
	return from + min(a, b)
}

// tagName returns the first word of a tag body, ignoring trim markers.
func tagName(body string) string {
	body = strings.TrimSpace(strings.Trim(strings.TrimSpace(body), "-"))
	name, _, _ := strings.Cut(body, " ")
	return name
}

// findEndRaw returns the offset just past the {% endraw %} tag at or after
// from, or -1.
func findEndRaw(text string, from int) int {
	for i := from; i < len(text); {
		open := strings.Index(text[i:], "{%")
		if open < 0 {
			return -1
		}
		open += i
		end := strings.Index(text[open+2:], "%}")
		if end < 0 {
			return -1
		}
		end += open + 2
		if tagName(text[open+2:end]) == "endraw" {
			return end + 2
		}
		i = end + 2
	}
	return -1
}

// HasSyntax reports whether s contains Liquid delimiters.
func HasSyntax(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

// RenderValue renders every string nested in value. Maps and slices are
// copied; other values are returned as is.
func RenderValue(value any, ctx *runctx.Context) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case string:
		return Render(v, ctx)
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			rendered, err := RenderValue(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	case map[string]string:
		out := make(map[string]string, len(v))
		for key, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []string:
		out := make([]string, len(v))
		for i, val := range v {
			rendered, err := Render(val, ctx)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

// RenderMap is RenderValue for a map.
func RenderMap(m map[string]any, ctx *runctx.Context) (map[string]any, error) {
	if m == nil {
		return map[string]any{}, nil
	}
	rendered, err := RenderValue(m, ctx)
	if err != nil {
		return nil, err
	}
	return rendered.(map[string]any), nil
}

// Bindings builds the normalized variable set for one render call.
func Bindings(ctx *runctx.Context) map[string]any {
	if ctx == nil {
		return map[string]any{}
	}
	snap := ctx.Snapshot()
	out := make(map[string]any, len(snap))
	for k, v := range snap {
		out[k] = bindable(Normalize(v))
	}
	return out
}

// Map is a normalized map as bound into a template. Its String form is
// what a direct {{ map }} interpolation prints.
type Map map[string]any

// String returns compact JSON with sorted keys.
func (m Map) String() string {
	data, err := json.Marshal(map[string]any(m))
	if err != nil {
		return fmt.Sprint(map[string]any(m))
	}
	return string(data)
}

// bindable wraps every map in a normalized value as a Map.
func bindable(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(Map, len(t))
		for k, val := range t {
			out[k] = bindable(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = bindable(val)
		}
		return out
	}
	return v
}

// Normalize converts a value to its template form. See the package
// documentation for the rules.
func Normalize(v any) any {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int8, int16, int32, int64:
		return strconv.FormatInt(reflect.ValueOf(t).Int(), 10)
	case uint, uint8, uint16, uint32, uint64:
		return strconv.FormatUint(reflect.ValueOf(t).Uint(), 10)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	case []byte:
		return string(t)
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Normalize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Normalize(val)
		}
		return out
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]any, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = Normalize(iter.Value().Interface())
			}
			return out
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return ""
		}
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return viaJSON(v)
}

func viaJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	dec := json.NewDecoder(strings.NewReader(string(data)))
	dec.UseNumber()
	var decoded any
	if err := dec.Decode(&decoded); err != nil {
		return string(data)
	}
	return Normalize(decoded)
}
