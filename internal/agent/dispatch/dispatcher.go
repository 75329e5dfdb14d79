package dispatch

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/grocerybabu/voice-core/internal/agent/cart"
	"github.com/grocerybabu/voice-core/internal/agent/catalog"
	"github.com/grocerybabu/voice-core/internal/agent/model"
	"github.com/grocerybabu/voice-core/internal/agent/order"
	"github.com/grocerybabu/voice-core/internal/agent/session"
	errx "github.com/grocerybabu/voice-core/internal/core/error"
	"github.com/grocerybabu/voice-core/internal/observability"
	logx "github.com/grocerybabu/voice-core/pkg/logger"
)

const (
	similarOnMiss  = 3
	similarOnFew   = 2
	fewResultsUpTo = 3
)

// CustomerLookup finds returning customers by phone.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, phone string) (*model.CustomerProfile, error)
}

type Deps struct {
	Catalog   *catalog.Index
	Carts     *cart.Store
	Orders    *order.Finalizer
	Sessions  *session.Registry
	Customers CustomerLookup
	Shop      model.ShopConfig
	Metrics   *observability.Metrics
}

// Dispatcher routes one structured action to the core operation it names
// and renders the outcome for playback.
type Dispatcher struct {
	Deps
	render renderer
}

func New(d Deps) *Dispatcher {
	if d.Shop.Currency == "" {
		d.Shop.Currency = "$"
	}
	return &Dispatcher{Deps: d, render: renderer{shop: d.Shop}}
}

// Dispatch never returns an error: every outcome, including panics in the
// operation, becomes a response the caller can hear.
func (d *Dispatcher) Dispatch(ctx context.Context, sessionID string, req model.ActionRequest) (resp model.ActionResponse) {
	start := time.Now()
	name := strings.TrimSpace(req.Name)
	defer func() {
		if r := recover(); r != nil {
			logx.Error().
				Str("sessionID", sessionID).
				Str("action", name).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("action panicked")
			resp = model.ActionResponse{Action: name, Kind: errx.KindInternal, Text: apologyText}
		}
		d.Metrics.ObserveAction(name, string(resp.Kind), time.Since(start))
	}()

	a := parseArgs(req.Arguments)
	var (
		data any
		text string
		err  error
	)
	switch name {
	case model.ActionSearchProducts:
		data, text, err = d.search(ctx, a)
	case model.ActionAddToCart:
		data, text, err = d.add(ctx, sessionID, a)
	case model.ActionRemoveFromCart:
		data, text, err = d.remove(ctx, sessionID, a)
	case model.ActionGetCartSummary:
		data, text, err = d.summary(ctx, sessionID)
	case model.ActionPlaceOrder:
		data, text, err = d.placeOrder(ctx, sessionID, a)
	default:
		logx.Warn().Str("sessionID", sessionID).Str("action", name).Msg("unknown action")
		return model.ActionResponse{Action: name, Text: unknownActionText}
	}

	if err != nil {
		kind := errx.KindOf(err)
		ev := logx.Debug()
		if kind == errx.KindInternal || kind == errx.KindOrderPlacementFailed {
			ev = logx.Error()
		}
		ev.Err(err).Str("sessionID", sessionID).Str("action", name).Str("kind", string(kind)).Msg("action failed")

		resp = model.ActionResponse{Action: name, Kind: kind, Text: d.render.failure(name, err)}
		if ae, ok := errx.As(err); ok {
			resp.Field = ae.Field
			if kind == errx.KindInsufficientStock {
				resp.Data = map[string]any{"product": ae.Subject, "available": ae.Available}
			}
		}
		return resp
	}
	return model.ActionResponse{Action: name, OK: true, Text: text, Data: data}
}

func (d *Dispatcher) search(ctx context.Context, a args) (any, string, error) {
	query, category := a.str("query"), a.str("category")
	if query == "" && category == "" {
		return nil, "", errx.ClarificationNeeded("query", "")
	}
	res := d.Catalog.Search(ctx, query, category)

	var related []model.ScoredItem
	if res.Mode == model.SearchRanked && query != "" {
		switch {
		case len(res.Items) == 0:
			related = d.Catalog.SimilarTo(ctx, query, similarOnMiss)
		case len(res.Items) < fewResultsUpTo:
			related = excluding(d.Catalog.SimilarTo(ctx, res.Items[0].Item.Name, similarOnFew+len(res.Items)), res.Items, similarOnFew)
		}
	}
	return res, d.render.search(res, related), nil
}

// excluding drops items already shown and keeps at most k.
func excluding(items, shown []model.ScoredItem, k int) []model.ScoredItem {
	seen := make(map[string]struct{}, len(shown))
	for _, s := range shown {
		seen[s.Item.Key()] = struct{}{}
	}
	out := make([]model.ScoredItem, 0, k)
	for _, s := range items {
		if _, ok := seen[s.Item.Key()]; ok {
			continue
		}
		out = append(out, s)
		if len(out) == k {
			break
		}
	}
	return out
}

func (d *Dispatcher) add(ctx context.Context, sessionID string, a args) (any, string, error) {
	product := a.str("product_name")
	if product == "" {
		return nil, "", errx.ClarificationNeeded("product_name", "")
	}
	qty, ok := a.integer("quantity")
	if !ok || qty <= 0 {
		return nil, "", errx.ClarificationNeeded("quantity", product)
	}
	customer, err := d.Sessions.Customer(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	res, err := d.Carts.Add(ctx, sessionID, product, qty, customer.Phone)
	if err != nil {
		return nil, "", err
	}
	return res, d.render.added(res), nil
}

func (d *Dispatcher) remove(ctx context.Context, sessionID string, a args) (any, string, error) {
	product := a.str("product_name")
	if product == "" {
		return nil, "", errx.ClarificationNeeded("product_name", "")
	}
	// only an absent quantity removes the whole line
	qty, ok := a.integer("quantity")
	if a["quantity"] != nil && (!ok || qty <= 0) {
		return nil, "", errx.ClarificationNeeded("quantity", product)
	}
	res, err := d.Carts.Remove(ctx, sessionID, product, qty)
	if err != nil {
		return nil, "", err
	}
	return res, d.render.removed(res), nil
}

func (d *Dispatcher) summary(ctx context.Context, sessionID string) (any, string, error) {
	sum, err := d.Carts.Summarize(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	return sum, d.render.summary(sum), nil
}

// placeOrder fills gaps from the session scratchpad and, for a returning
// phone number, from the stored profile before asking the caller.
func (d *Dispatcher) placeOrder(ctx context.Context, sessionID string, a args) (any, string, error) {
	sum, err := d.Carts.Summarize(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}
	if sum.Empty {
		return nil, "", errx.CartEmpty()
	}

	given := model.CustomerData{
		Name:  a.str("customer_name"),
		Phone: a.str("customer_phone"),
	}
	if addr := a.str("customer_address"); addr != "" {
		given.Address = model.ParseAddress(addr)
	}
	if err := d.Sessions.SetCustomer(ctx, sessionID, given); err != nil {
		return nil, "", err
	}
	data, err := d.Sessions.Customer(ctx, sessionID)
	if err != nil {
		return nil, "", err
	}

	if data.Phone != "" && (data.Name == "" || data.Address.IsZero()) && d.Customers != nil {
		profile, err := d.Customers.GetCustomer(ctx, data.Phone)
		if err != nil {
			logx.Warn().Err(err).Str("sessionID", sessionID).Msg("customer lookup failed")
		} else if profile != nil {
			if data.Name == "" {
				data.Name = profile.Name
			}
			if data.Address.IsZero() {
				data.Address = profile.Address
			}
			logx.Debug().Str("sessionID", sessionID).Msg("filled order details from returning customer")
		}
	}

	switch {
	case data.Name == "":
		return nil, "", errx.ClarificationNeeded("customer_name", "")
	case data.Phone == "":
		return nil, "", errx.ClarificationNeeded("customer_phone", "")
	case data.Address.IsZero():
		return nil, "", errx.ClarificationNeeded("customer_address", "")
	}

	rec, err := d.Orders.PlaceOrder(ctx, sessionID, data)
	if err != nil {
		return nil, "", err
	}
	return rec, d.render.placed(rec), nil
}
