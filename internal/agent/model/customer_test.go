package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Address
	}{
		{
			name: "four parts",
			in:   "1 Main St, Springfield, IL, 62701",
			want: Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701"},
		},
		{
			name: "street only",
			in:   "1 Main St",
			want: Address{Street: "1 Main St"},
		},
		{
			name: "extra parts ignored",
			in:   "Flat 2, 1 Main St, Springfield, IL, 62701",
			want: Address{Street: "Flat 2", City: "1 Main St", State: "Springfield", Zip: "IL"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseAddress(tt.in))
		})
	}
	assert.True(t, ParseAddress("").IsZero())
}

func TestCustomerDataProfile(t *testing.T) {
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	p := CustomerData{Name: " A ", Phone: " 555 ", Address: ParseAddress("1 Main St")}.Profile(at)
	assert.Equal(t, "A", p.Name)
	assert.Equal(t, "555", p.Phone)
	assert.Equal(t, "2026-03-14", p.LastOrderDate)
}

func TestNewOrder(t *testing.T) {
	c := NewCart("call-1", "555")
	_, _ = c.Add("Rice 5kg", 2, price("15.99"))
	at := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)

	o1, err := NewOrder("555", c, at)
	require.NoError(t, err)
	o2, err := NewOrder("555", c, at)
	require.NoError(t, err)

	assert.NotEqual(t, o1.ID, o2.ID)
	assert.Equal(t, OrderStatusPending, o1.Status)
	assert.Equal(t, "2026-03-14", o1.Date)
	assert.True(t, o1.Total.Equal(price("31.98")))

	lines, err := o1.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 1)
	assert.Equal(t, "Rice 5kg", lines[0].Name)
}

func TestCatalogItemValidate(t *testing.T) {
	_, err := NewCatalogItem("  ", "Grocery", 1, price("1"), "", nil)
	assert.Error(t, err)
	_, err = NewCatalogItem("Rice", "Grocery", -1, price("1"), "", nil)
	assert.Error(t, err)
	_, err = NewCatalogItem("Rice", "Grocery", 1, price("-1"), "", nil)
	assert.Error(t, err)

	it, err := NewCatalogItem(" Rice ", "Grocery", 0, price("1"), "", []string{" a ", "", "b"})
	require.NoError(t, err)
	assert.Equal(t, "Rice", it.Name)
	assert.Equal(t, "rice", it.Key())
	assert.Equal(t, []string{"a", "b"}, it.Tags)
	assert.False(t, it.InStock())
	assert.Equal(t, []string{"x", "y"}, ParseTags("x, ,y"))
}
