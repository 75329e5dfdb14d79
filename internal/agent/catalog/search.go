package catalog

import (
	"context"
	"sort"
	"strings"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

// builtinCategoryAliases map spoken words onto category names.
var builtinCategoryAliases = map[string]string{
	"grocery":   "grocery",
	"groceries": "grocery",
	"snack":     "snacks",
	"snacks":    "snacks",
	"spice":     "spices",
	"spices":    "spices",
	"food":      "food",
	"foods":     "food",
}

var listingPhrases = []string{
	"what do you have",
	"what have you got",
	"what do you sell",
	"show me",
}

// view loads the active snapshot together with per-item availability.
func (x *Index) view() (*snapshot, []int) {
	x.stockMu.Lock()
	defer x.stockMu.Unlock()
	snap := x.snap.Load()
	avail := make([]int, len(snap.items))
	for i, it := range snap.items {
		avail[i] = x.availableLocked(it.Key())
	}
	return snap, avail
}

func withQuantity(it model.CatalogItem, q int) model.CatalogItem {
	it.Quantity = q
	return it
}

// FindExact looks an item up by case-insensitive name, stock regardless.
func (x *Index) FindExact(name string) (model.CatalogItem, bool) {
	snap, avail := x.view()
	i, ok := snap.byKey[model.NameKey(name)]
	if !ok {
		return model.CatalogItem{}, false
	}
	return withQuantity(snap.items[i], avail[i]), true
}

// FindBestMatch returns the highest scoring item at or above the match
// threshold. Ties go to the item listed first.
func (x *Index) FindBestMatch(ctx context.Context, text string) (model.ScoredItem, bool) {
	snap, avail := x.view()
	if len(snap.items) == 0 || strings.TrimSpace(text) == "" {
		return model.ScoredItem{}, false
	}
	scores := snap.scorer.Score(ctx, text)
	best := -1
	for i, s := range scores {
		if s < x.opts.MatchThreshold {
			continue
		}
		if best < 0 || s > scores[best] {
			best = i
		}
	}
	if best < 0 {
		return model.ScoredItem{}, false
	}
	return model.ScoredItem{Item: withQuantity(snap.items[best], avail[best]), Score: scores[best]}, true
}

// Resolve finds the item a caller most likely means: exact name first, then
// the best fuzzy match.
func (x *Index) Resolve(ctx context.Context, query string) (model.CatalogItem, bool) {
	if it, ok := x.FindExact(query); ok {
		return it, true
	}
	m, ok := x.FindBestMatch(ctx, query)
	return m.Item, ok
}

// Search answers a product query. An explicit category wins, then a category
// named in the query, then a general listing request, then ranked search.
// Out-of-stock items never appear.
func (x *Index) Search(ctx context.Context, query, category string) model.SearchResult {
	snap, avail := x.view()
	res := model.SearchResult{Query: query, Mode: model.SearchRanked, Items: []model.ScoredItem{}}
	if len(snap.items) == 0 {
		return res
	}

	if strings.TrimSpace(category) != "" {
		res.Mode = model.SearchCategory
		cat, ok := snap.resolveCategory(category)
		if !ok {
			return res
		}
		res.Category = cat
		for i, it := range snap.items {
			if avail[i] > 0 && strings.EqualFold(it.Category, cat) {
				res.Items = append(res.Items, model.ScoredItem{Item: withQuantity(it, avail[i]), Score: 1})
				if len(res.Items) >= x.opts.MaxResults {
					break
				}
			}
		}
		return res
	}

	tokens := tokenize(query)
	alias, specific := snap.splitQuery(tokens)
	if alias != "" && len(specific) == 0 {
		res.Mode = model.SearchCategory
		res.Category = alias
		res.Items = x.topOfCategory(snap, avail, alias)
		return res
	}
	if alias == "" && len(specific) == 0 && isListing(query, tokens) {
		res.Mode = model.SearchGrouped
		res.Items = nil
		res.Groups = groupByCategory(snap, avail)
		return res
	}

	res.Items = x.ranked(ctx, snap, avail, query, x.opts.MaxResults)
	return res
}

func (x *Index) ranked(ctx context.Context, snap *snapshot, avail []int, query string, limit int) []model.ScoredItem {
	scores := snap.scorer.Score(ctx, query)
	out := make([]model.ScoredItem, 0, limit)
	for i, s := range scores {
		if avail[i] > 0 && s >= x.opts.SearchFloor {
			out = append(out, model.ScoredItem{Item: withQuantity(snap.items[i], avail[i]), Score: s})
		}
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// topOfCategory lists in-stock items whose category matches name, most
// stocked first, cheaper first on equal stock.
func (x *Index) topOfCategory(snap *snapshot, avail []int, name string) []model.ScoredItem {
	name = strings.ToLower(name)
	out := []model.ScoredItem{}
	for i, it := range snap.items {
		cat := strings.ToLower(it.Category)
		if avail[i] <= 0 || cat == "" {
			continue
		}
		if strings.Contains(cat, name) || strings.Contains(name, cat) {
			out = append(out, model.ScoredItem{Item: withQuantity(it, avail[i]), Score: 1})
		}
	}
	sort.SliceStable(out, func(a, b int) bool {
		if out[a].Item.Quantity != out[b].Item.Quantity {
			return out[a].Item.Quantity > out[b].Item.Quantity
		}
		return out[a].Item.Price.LessThan(out[b].Item.Price)
	})
	if len(out) > x.opts.CategoryTopK {
		out = out[:x.opts.CategoryTopK]
	}
	return out
}

// SimilarTo returns up to k in-stock items most like the named one, the item
// itself excluded. An unknown name falls back to a ranked search.
func (x *Index) SimilarTo(ctx context.Context, name string, k int) []model.ScoredItem {
	if k <= 0 {
		return []model.ScoredItem{}
	}
	snap, avail := x.view()
	target := snap.locate(name)
	if target < 0 {
		return x.ranked(ctx, snap, avail, name, k)
	}

	rel := snap.scorer.Related(target)
	out := make([]model.ScoredItem, 0, k)
	for i, s := range rel {
		if i == target || avail[i] <= 0 || s <= 0 {
			continue
		}
		out = append(out, model.ScoredItem{Item: withQuantity(snap.items[i], avail[i]), Score: s})
	}
	sort.SliceStable(out, func(a, b int) bool { return out[a].Score > out[b].Score })
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// Complementary suggests up to k related items whose names do not contain
// the query, so "ketchup" never suggests another ketchup.
func (x *Index) Complementary(ctx context.Context, name string, k int) []model.ScoredItem {
	if k <= 0 {
		return []model.ScoredItem{}
	}
	q := model.NameKey(name)
	out := make([]model.ScoredItem, 0, k)
	for _, s := range x.SimilarTo(ctx, name, k*3) {
		if strings.Contains(model.NameKey(s.Item.Name), q) {
			continue
		}
		out = append(out, s)
		if len(out) == k {
			break
		}
	}
	return out
}

// CategoryCounts counts in-stock items per category, sorted by category.
func (x *Index) CategoryCounts() []model.CategoryCount {
	snap, avail := x.view()
	counts := make(map[string]int)
	for i, it := range snap.items {
		if avail[i] > 0 {
			counts[it.Category]++
		}
	}
	out := make([]model.CategoryCount, 0, len(counts))
	for c, n := range counts {
		out = append(out, model.CategoryCount{Category: c, Count: n})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Category < out[b].Category })
	return out
}

func groupByCategory(snap *snapshot, avail []int) []model.CategoryGroup {
	groups := []model.CategoryGroup{}
	pos := make(map[string]int)
	for i, it := range snap.items {
		if avail[i] <= 0 {
			continue
		}
		cat := it.Category
		if cat == "" {
			cat = "Other"
		}
		g, ok := pos[cat]
		if !ok {
			g = len(groups)
			pos[cat] = g
			groups = append(groups, model.CategoryGroup{Category: cat})
		}
		groups[g].Items = append(groups[g].Items, withQuantity(it, avail[i]))
	}
	return groups
}

func isListing(query string, tokens []string) bool {
	q := strings.Join(tokens, " ")
	for _, p := range listingPhrases {
		if strings.Contains(q, p) {
			return true
		}
	}
	for _, t := range tokens {
		if _, ok := listingWords[t]; ok {
			return true
		}
	}
	return false
}

// splitQuery separates a category alias from the product specific terms of
// a query.
func (s *snapshot) splitQuery(tokens []string) (alias string, specific []string) {
	for _, t := range tokens {
		if a, ok := s.aliases[t]; ok {
			if alias == "" {
				alias = a
			}
			continue
		}
		if _, ok := listingWords[t]; ok {
			continue
		}
		if _, ok := stopwords[t]; ok || hasDigit(t) {
			continue
		}
		specific = append(specific, t)
	}
	return alias, specific
}

// locate finds an item by exact name, else by the first name containing it.
func (s *snapshot) locate(name string) int {
	key := model.NameKey(name)
	if key == "" {
		return -1
	}
	if i, ok := s.byKey[key]; ok {
		return i
	}
	for i, it := range s.items {
		if strings.Contains(it.Key(), key) {
			return i
		}
	}
	return -1
}

// resolveCategory maps a requested category onto a catalog category: alias,
// exact name, containment, then the closest name by edit distance.
func (s *snapshot) resolveCategory(req string) (string, bool) {
	r := strings.ToLower(strings.TrimSpace(req))
	if a, ok := s.aliases[r]; ok {
		r = a
	}
	for _, c := range s.categories {
		if strings.EqualFold(c, r) {
			return c, true
		}
	}
	for _, c := range s.categories {
		lc := strings.ToLower(c)
		if strings.Contains(lc, r) || strings.Contains(r, lc) {
			return c, true
		}
	}
	best, bestScore := "", 0.0
	for _, c := range s.categories {
		if sc := tokenSimilarity(r, strings.ToLower(c)); sc > bestScore {
			best, bestScore = c, sc
		}
	}
	return best, bestScore > 0
}

func categoriesOf(items []model.CatalogItem) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, it := range items {
		k := strings.ToLower(it.Category)
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, it.Category)
	}
	return out
}

// categoryAliases extends the built-in aliases with each catalog category
// in singular and plural form.
func categoryAliases(categories []string) map[string]string {
	out := make(map[string]string, len(builtinCategoryAliases)+2*len(categories))
	for k, v := range builtinCategoryAliases {
		out[k] = v
	}
	for _, c := range categories {
		lc := strings.ToLower(c)
		if strings.ContainsAny(lc, " \t") {
			continue
		}
		out[lc] = lc
		out[strings.TrimSuffix(lc, "s")] = lc
		if !strings.HasSuffix(lc, "s") {
			out[lc+"s"] = lc
		}
	}
	return out
}
