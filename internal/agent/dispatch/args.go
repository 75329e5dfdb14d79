package dispatch

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// numberWords covers the quantities callers tend to say out loud.
var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
	"a": 1, "an": 1, "a couple": 2, "a dozen": 12, "dozen": 12, "half a dozen": 6,
}

// args is a sanitized argument object. Lookups never invent values: a
// missing or unusable argument reads as absent.
type args map[string]any

// parseArgs decodes raw tool arguments, best-effort. Anything that is not a
// JSON object yields no arguments.
func parseArgs(raw json.RawMessage) args {
	if len(raw) == 0 {
		return args{}
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		// some models double encode the arguments as a JSON string
		var s string
		if json.Unmarshal(raw, &s) != nil || json.Unmarshal([]byte(s), &m) != nil {
			return args{}
		}
	}
	if m == nil {
		return args{}
	}
	return args(m)
}

// str returns the trimmed string under key. Non-string scalars are coerced
// to their text form.
func (a args) str(key string) string {
	v, ok := a[key]
	if !ok || v == nil {
		return ""
	}
	switch vv := v.(type) {
	case string:
		return strings.TrimSpace(vv)
	case float64, bool:
		return strings.TrimSpace(fmt.Sprint(vv))
	default:
		return ""
	}
}

// integer returns the whole number under key, accepting numbers, numeric
// strings and small number words. ok is false when the argument is absent
// or not a usable count.
func (a args) integer(key string) (n int, ok bool) {
	v, present := a[key]
	if !present || v == nil {
		return 0, false
	}
	switch vv := v.(type) {
	case float64:
		if vv != math.Trunc(vv) || vv > math.MaxInt32 || vv < math.MinInt32 {
			return 0, false
		}
		return int(vv), true
	case string:
		s := strings.ToLower(strings.TrimSpace(vv))
		if s == "" {
			return 0, false
		}
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil && f == math.Trunc(f) {
			return int(f), true
		}
		if w, ok := numberWords[s]; ok {
			return w, true
		}
	}
	return 0, false
}

// SanitizeArguments normalises raw tool arguments before they reach the
// dispatcher: strings are trimmed and counts coerced to integers. It never
// fails; input it cannot read is returned unchanged.
func SanitizeArguments(name, arguments string) string {
	a := parseArgs(json.RawMessage(arguments))
	if len(a) == 0 {
		return arguments
	}

	var strs []string
	switch name {
	case model.ActionSearchProducts:
		strs = []string{"query", "category"}
	case model.ActionAddToCart, model.ActionRemoveFromCart:
		strs = []string{"product_name"}
		if _, present := a["quantity"]; present {
			if n, ok := a.integer("quantity"); ok {
				a["quantity"] = n
			} else {
				delete(a, "quantity")
			}
		}
	case model.ActionPlaceOrder:
		strs = []string{"customer_name", "customer_phone", "customer_address"}
	}
	for _, k := range strs {
		if _, present := a[k]; !present {
			continue
		}
		if s := a.str(k); s != "" {
			a[k] = s
		} else {
			delete(a, k)
		}
	}

	b, err := json.Marshal(a)
	if err != nil {
		return arguments
	}
	return string(b)
}
