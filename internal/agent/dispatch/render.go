package dispatch

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/grocerybabu/voice-core/internal/agent/cart"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/order"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
)

const (
	unknownActionText = "I'm not sure how to handle that request. Could you please rephrase?"
	apologyText       = "I'm sorry, something went wrong on my end. Could you please try that again?"
)

// renderer turns outcomes into text ready for speech synthesis.
type renderer struct {
	shop model.ShopConfig
}

func (r renderer) money(d decimal.Decimal) string {
	return r.shop.Currency + d.StringFixed(2)
}

func (r renderer) search(res model.SearchResult, related []model.ScoredItem) string {
	switch res.Mode {
	case model.SearchGrouped:
		return r.grouped(res.Groups)
	case model.SearchCategory:
		if len(res.Items) == 0 {
			if res.Category == "" {
				return "I couldn't find that category. Could you tell me what kind of product you're looking for?"
			}
			return fmt.Sprintf("I couldn't find any %s items in stock right now.", res.Category)
		}
		return fmt.Sprintf("Here are our top %s items: %s. Would you like to add any of these to your cart?",
			res.Category, r.itemList(res.Items))
	}

	if len(res.Items) == 0 {
		if len(related) == 0 {
			return fmt.Sprintf("I couldn't find any products matching '%s'. Could you please try a different name?", res.Query)
		}
		names := make([]string, 0, len(related))
		for _, s := range related {
			names = append(names, fmt.Sprintf("%s (%s)", s.Item.Name, r.money(s.Item.Price)))
		}
		return fmt.Sprintf("I couldn't find exact matches for '%s', but you might like: %s. Would you like to add any of these to your cart?",
			res.Query, strings.Join(names, ", "))
	}

	var b strings.Builder
	shown := res.Items
	if len(shown) > 5 {
		fmt.Fprintf(&b, "I found %d products. Here are some popular ones: ", len(shown))
		shown = shown[:5]
	} else {
		b.WriteString("I found these products: ")
	}
	b.WriteString(r.itemList(shown))
	b.WriteString(". ")
	if len(related) > 0 {
		b.WriteString("You might also like: ")
		b.WriteString(nameList(related))
		b.WriteString(". ")
	}
	b.WriteString("Would you like to add any of these to your cart?")
	return b.String()
}

func (r renderer) grouped(groups []model.CategoryGroup) string {
	if len(groups) == 0 {
		return "We're out of stock on everything right now. Please check back soon."
	}
	parts := make([]string, 0, len(groups))
	for _, g := range groups {
		names := make([]string, 0, len(g.Items))
		for _, it := range g.Items {
			names = append(names, it.Name)
		}
		parts = append(parts, fmt.Sprintf("%s: %s", g.Category, strings.Join(names, ", ")))
	}
	return fmt.Sprintf("Here's what we have. %s. Would you like to add anything to your cart?", strings.Join(parts, ". "))
}

func (r renderer) itemList(items []model.ScoredItem) string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, fmt.Sprintf("%s (%s, %d available)", s.Item.Name, r.money(s.Item.Price), s.Item.Quantity))
	}
	return strings.Join(out, ", ")
}

func nameList(items []model.ScoredItem) string {
	out := make([]string, 0, len(items))
	for _, s := range items {
		out = append(out, s.Item.Name)
	}
	return strings.Join(out, ", ")
}

func (r renderer) added(res cart.AddResult) string {
	text := fmt.Sprintf("Added %d %s to your cart.", res.Added, res.Product.Name)
	if len(res.Suggestions) > 0 {
		text += fmt.Sprintf(" You might also need: %s. Would you like to add any of these too?", nameList(res.Suggestions))
	}
	return text
}

func (r renderer) removed(res cart.RemoveResult) string {
	var text string
	if res.LineRemoved {
		text = fmt.Sprintf("Removed %s from your cart.", res.Name)
	} else {
		text = fmt.Sprintf("Removed %d %s from your cart.", res.Removed, res.Name)
	}
	if res.Cart.Empty {
		return text + " Your cart is now empty."
	}
	return text + fmt.Sprintf(" Your total is now %s.", r.money(res.Cart.Total))
}

func (r renderer) summary(sum model.CartSummary) string {
	if sum.Empty {
		return "Your cart is empty."
	}
	var b strings.Builder
	b.WriteString("Your cart contains: ")
	for _, l := range sum.Items {
		fmt.Fprintf(&b, "%d %s, ", l.Quantity, l.Name)
	}
	b.WriteString("Total: ")
	b.WriteString(r.money(sum.Total))
	return b.String()
}

func (r renderer) placed(rec order.Receipt) string {
	return fmt.Sprintf("Order placed successfully! Your total is %s. Thank you for shopping with %s!",
		r.money(rec.Total), r.shop.BusinessName)
}

// failure renders a failure kind for the action that produced it.
func (r renderer) failure(action string, err error) string {
	ae, ok := errx.As(err)
	if !ok || ae.Kind == errx.KindNone || ae.Kind == errx.KindInternal {
		return apologyText
	}
	switch ae.Kind {
	case errx.KindProductNotFound:
		return fmt.Sprintf("I couldn't find a product matching '%s'. Could you please try a different name?", ae.Subject)
	case errx.KindInsufficientStock:
		if ae.Available <= 0 {
			return fmt.Sprintf("Sorry, %s is out of stock right now.", ae.Subject)
		}
		return fmt.Sprintf("Only %d available. Would you like to add %d instead?", ae.Available, ae.Available)
	case errx.KindCartEmpty:
		if action == model.ActionPlaceOrder {
			return "Your cart is empty. Please add some items before placing an order."
		}
		return "Your cart is empty."
	case errx.KindItemNotInCart:
		return fmt.Sprintf("I couldn't find %s in your cart.", ae.Subject)
	case errx.KindOrderPlacementFailed:
		return "I'm sorry, I couldn't place your order right now. Your cart is saved, so please try again in a moment."
	case errx.KindClarificationNeeded:
		return clarification(ae.Field, ae.Subject)
	}
	return apologyText
}

func clarification(field, subject string) string {
	switch field {
	case "query":
		return "What product are you looking for?"
	case "product_name":
		return "Which product would you like?"
	case "quantity":
		if subject != "" {
			return fmt.Sprintf("How many %s would you like?", subject)
		}
		return "How many would you like?"
	case "customer_name":
		return "May I have your name for the order?"
	case "customer_phone":
		return "What phone number should we use for the order?"
	case "customer_address":
		return "What address should we deliver to? Please say the street, city, state and zip code."
	}
	return "Could you give me a few more details?"
}
