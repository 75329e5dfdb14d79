package dispatch

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

func TestArgsInteger(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		want   int
		wantOK bool
	}{
		{"number", `{"quantity":3}`, 3, true},
		{"numeric string", `{"quantity":" 4 "}`, 4, true},
		{"float string", `{"quantity":"2.0"}`, 2, true},
		{"word", `{"quantity":"Two"}`, 2, true},
		{"dozen", `{"quantity":"a dozen"}`, 12, true},
		{"fraction", `{"quantity":1.5}`, 0, false},
		{"garbage", `{"quantity":"lots"}`, 0, false},
		{"null", `{"quantity":null}`, 0, false},
		{"missing", `{}`, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := parseArgs(json.RawMessage(tt.raw)).integer("quantity")
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestArgsStr(t *testing.T) {
	a := parseArgs(json.RawMessage(`{"name":"  Asha ","count":42,"flag":true,"obj":{"x":1}}`))
	assert.Equal(t, "Asha", a.str("name"))
	assert.Equal(t, "42", a.str("count"))
	assert.Equal(t, "true", a.str("flag"))
	assert.Empty(t, a.str("obj"))
	assert.Empty(t, a.str("missing"))

	assert.Empty(t, parseArgs(json.RawMessage(`[1,2]`)))
	assert.Empty(t, parseArgs(json.RawMessage(`not json`)))
	assert.Empty(t, parseArgs(nil))
}

func TestSanitizeArguments(t *testing.T) {
	assert.JSONEq(t, `{"product_name":"rice","quantity":3}`,
		SanitizeArguments(model.ActionAddToCart, `{"product_name":"  rice ","quantity":"three"}`))
	assert.JSONEq(t, `{"product_name":"rice"}`,
		SanitizeArguments(model.ActionRemoveFromCart, `{"product_name":"rice","quantity":"lots"}`))
	assert.JSONEq(t, `{"customer_name":"Asha"}`,
		SanitizeArguments(model.ActionPlaceOrder, `{"customer_name":" Asha ","customer_phone":"  "}`))
	assert.Equal(t, "not json", SanitizeArguments(model.ActionSearchProducts, "not json"))
}
