package repo

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/grocerybabu/voice-core/internal/agent/model"
)

//go:embed catalogdata/fallback.yaml
var fallbackCatalog []byte

type catalogFile struct {
	Items []catalogRow `yaml:"items"`
}

// catalogRow mirrors a spreadsheet row: price as text, tags as one cell.
type catalogRow struct {
	Name        string `yaml:"name"`
	Category    string `yaml:"category"`
	Quantity    int    `yaml:"quantity"`
	Price       string `yaml:"price"`
	Description string `yaml:"description"`
	Tags        string `yaml:"tags"`
}

// FallbackCatalog returns the built-in catalog.
func FallbackCatalog() []model.CatalogItem {
	items, err := ParseCatalogYAML(fallbackCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded fallback catalog: %v", err))
	}
	return items
}

// LoadCatalogFile reads a YAML catalog from disk.
func LoadCatalogFile(path string) ([]model.CatalogItem, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog file: %w", err)
	}
	return ParseCatalogYAML(b)
}

// ParseCatalogYAML decodes and validates catalog rows. Unparseable prices and
// negative quantities are rejected rather than coerced.
func ParseCatalogYAML(b []byte) ([]model.CatalogItem, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("decode catalog yaml: %w", err)
	}
	items := make([]model.CatalogItem, 0, len(f.Items))
	seen := make(map[string]struct{}, len(f.Items))
	for i, row := range f.Items {
		price, err := decimal.NewFromString(row.Price)
		if err != nil {
			return nil, fmt.Errorf("catalog row %d (%q): price: %w", i, row.Name, err)
		}
		item, err := model.NewCatalogItem(row.Name, row.Category, row.Quantity, price, row.Description, model.ParseTags(row.Tags))
		if err != nil {
			return nil, fmt.Errorf("catalog row %d: %w", i, err)
		}
		if _, dup := seen[item.Key()]; dup {
			return nil, fmt.Errorf("catalog row %d: duplicate item %q", i, item.Name)
		}
		seen[item.Key()] = struct{}{}
		items = append(items, item)
	}
	return items, nil
}
