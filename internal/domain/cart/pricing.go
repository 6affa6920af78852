// internal/domain/cart/pricing.go
package cart

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Business constants, in whole rupees. They are not configurable per request.
const (
	FreeShippingThreshold int64 = 2000
	FlatShippingFee       int64 = 99
	DefaultSize                 = "Standard"

	// MaxSizeLength matches the width of the size column
	MaxSizeLength = 50
)

var (
	taxRate   = decimal.RequireFromString("0.18")
	maxAmount = decimal.NewFromInt(math.MaxInt64)
	maxCount  = decimal.NewFromInt(math.MaxInt)
)

// TaxRate returns the flat tax rate applied to the subtotal
func TaxRate() float64 {
	return taxRate.InexactFloat64()
}

// Summarize computes the cart summary for already-priced items
func Summarize(items []Item) Summary {
	summary := Summary{
		ShippingThreshold: FreeShippingThreshold,
		TaxRate:           TaxRate(),
	}

	for _, item := range items {
		summary.ItemCount += item.Quantity
		summary.Subtotal += item.Subtotal
	}

	summary.ShippingCost = ShippingFor(summary.Subtotal)
	summary.Tax = TaxFor(summary.Subtotal)
	summary.Total = summary.Subtotal + summary.ShippingCost + summary.Tax

	return summary
}

// ShippingFor returns the shipping charge for a subtotal
func ShippingFor(subtotal int64) int64 {
	if subtotal >= FreeShippingThreshold {
		return 0
	}
	return FlatShippingFee
}

// TaxFor returns subtotal × rate rounded half away from zero
func TaxFor(subtotal int64) int64 {
	return decimal.NewFromInt(subtotal).Mul(taxRate).Round(0).IntPart()
}

// fitsSummary reports whether a cart made of others plus one line of price × the sum of
// quantities still has a summary representable in int64. The check is exact in decimal.
func fitsSummary(others []Item, price int64, quantities ...int) bool {
	count := decimal.Zero
	for _, q := range quantities {
		count = count.Add(decimal.NewFromInt(int64(q)))
	}
	subtotal := decimal.NewFromInt(price).Mul(count)

	for _, item := range others {
		qty := decimal.NewFromInt(int64(item.Quantity))
		count = count.Add(qty)
		if item.Product != nil {
			subtotal = subtotal.Add(decimal.NewFromInt(item.Product.Price).Mul(qty))
		}
	}

	total := subtotal.
		Add(subtotal.Mul(taxRate).Round(0)).
		Add(decimal.NewFromInt(FlatShippingFee))

	return count.LessThanOrEqual(maxCount) && total.LessThanOrEqual(maxAmount)
}

// resolveSize picks the requested size, else the first declared size, else DefaultSize
func resolveSize(requested string, declared []string) string {
	if size := strings.TrimSpace(requested); size != "" {
		return size
	}
	if len(declared) > 0 {
		return declared[0]
	}
	return DefaultSize
}
