package model

import (
	"encoding/json"

	errx "github.com/grocerybabu/voice-core/internal/core/error"
)

const (
	ActionSearchProducts = "search_products"
	ActionAddToCart      = "add_to_cart"
	ActionRemoveFromCart = "remove_from_cart"
	ActionGetCartSummary = "get_cart_summary"
	ActionPlaceOrder     = "place_order"
)

// ActionRequest is a structured action emitted by the intent layer.
type ActionRequest struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ActionResponse is the dispatcher's outcome, with Text ready for playback.
type ActionResponse struct {
	Action string    `json:"action"`
	OK     bool      `json:"ok"`
	Kind   errx.Kind `json:"kind,omitempty"`
	Field  string    `json:"field,omitempty"`
	Text   string    `json:"text"`
	Data   any       `json:"data,omitempty"`
}
