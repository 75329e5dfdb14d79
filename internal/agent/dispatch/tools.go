package dispatch

import (
	"github.com/cloudwego/eino/schema"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// ToolInfos declares the five cart actions for binding to a chat model.
func ToolInfos() []*schema.ToolInfo {
	return []*schema.ToolInfo{
		{
			Name: model.ActionSearchProducts,
			Desc: "Search for products in the inventory by name, category, or tags",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type:     schema.String,
					Desc:     "The search query to find products",
					Required: true,
				},
				"category": {
					Type: schema.String,
					Desc: "Optional category filter for the search",
				},
			}),
		},
		{
			Name: model.ActionAddToCart,
			Desc: "Add a product to the shopping cart with specified quantity",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_name": {
					Type:     schema.String,
					Desc:     "The name of the product to add to cart",
					Required: true,
				},
				"quantity": {
					Type:     schema.Integer,
					Desc:     "The quantity of the product to add",
					Required: true,
				},
			}),
		},
		{
			Name: model.ActionRemoveFromCart,
			Desc: "Remove a product from the shopping cart, entirely or by a quantity",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"product_name": {
					Type:     schema.String,
					Desc:     "The name of the product to remove",
					Required: true,
				},
				"quantity": {
					Type: schema.Integer,
					Desc: "How many to remove; omit to remove the product entirely",
				},
			}),
		},
		{
			Name: model.ActionGetCartSummary,
			Desc: "Get a summary of the current shopping cart contents",
		},
		{
			Name: model.ActionPlaceOrder,
			Desc: "Place the order with the current cart contents and customer information",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"customer_name": {
					Type:     schema.String,
					Desc:     "The customer's full name",
					Required: true,
				},
				"customer_phone": {
					Type:     schema.String,
					Desc:     "The customer's phone number",
					Required: true,
				},
				"customer_address": {
					Type:     schema.String,
					Desc:     "The delivery address as street, city, state, zip",
					Required: true,
				},
			}),
		},
	}
}
