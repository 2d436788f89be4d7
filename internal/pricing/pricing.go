// Package pricing turns a cart into an itemized order summary. Prices in the
// catalog already include VAT, so VAT is back-calculated and disclosed rather
// than added on top.
package pricing

import (
	"fmt"

	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/models"
	"github.com/shopspring/decimal"
)

type Policy struct {
	FreeShippingThreshold decimal.Decimal
	FlatShippingFee       decimal.Decimal
	VATRate               decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		FreeShippingThreshold: decimal.NewFromInt(500),
		FlatShippingFee:       decimal.NewFromInt(49),
		VATRate:               decimal.RequireFromString("0.25"),
	}
}

type Line struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type Cart []Line

// Validate rejects non-positive quantities and repeated product ids.
func (c Cart) Validate() error {
	seen := make(map[int64]struct{}, len(c))
	for _, line := range c {
		if line.Quantity <= 0 {
			return apperr.Validation(fmt.Sprintf("quantity for product %d must be positive", line.ProductID))
		}
		if _, dup := seen[line.ProductID]; dup {
			return apperr.Validation(fmt.Sprintf("product %d appears more than once", line.ProductID))
		}
		seen[line.ProductID] = struct{}{}
	}
	return nil
}

type LineItem struct {
	ProductID int64           `json:"productId"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"lineTotal"`
}

type Summary struct {
	LineItems []LineItem      `json:"lineItems"`
	Excluded  []int64         `json:"excluded"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	VAT       decimal.Decimal `json:"vat"`
	Shipping  decimal.Decimal `json:"shipping"`
	Total     decimal.Decimal `json:"total"`
}

// Rounded returns a copy with every amount rounded to whole currency units.
func (s Summary) Rounded() Summary {
	out := s
	out.LineItems = make([]LineItem, len(s.LineItems))
	for i, item := range s.LineItems {
		item.UnitPrice = item.UnitPrice.Round(0)
		item.LineTotal = item.LineTotal.Round(0)
		out.LineItems[i] = item
	}
	out.Excluded = append([]int64{}, s.Excluded...)
	out.Subtotal = s.Subtotal.Round(0)
	out.VAT = s.VAT.Round(0)
	out.Shipping = s.Shipping.Round(0)
	out.Total = s.Total.Round(0)
	return out
}

type Engine struct {
	policy Policy
}

func NewEngine(policy Policy) *Engine {
	return &Engine{policy: policy}
}

func (e *Engine) Policy() Policy {
	return e.policy
}

// Quote prices cart against snapshot. Lines whose product is missing from
// the snapshot are skipped and reported in Excluded. Stock is not consulted.
func (e *Engine) Quote(cart Cart, snapshot []models.Product) Summary {
	byID := make(map[int64]models.Product, len(snapshot))
	for _, p := range snapshot {
		byID[p.ID] = p
	}

	summary := Summary{
		LineItems: []LineItem{},
		Excluded:  []int64{},
		Subtotal:  decimal.Zero,
		VAT:       decimal.Zero,
		Shipping:  decimal.Zero,
		Total:     decimal.Zero,
	}

	for _, line := range cart {
		product, ok := byID[line.ProductID]
		if !ok {
			summary.Excluded = append(summary.Excluded, line.ProductID)
			continue
		}

		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		summary.LineItems = append(summary.LineItems, LineItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  line.Quantity,
			LineTotal: lineTotal,
		})
		summary.Subtotal = summary.Subtotal.Add(lineTotal)
	}

	if len(summary.LineItems) == 0 {
		return summary
	}

	if summary.Subtotal.LessThan(e.policy.FreeShippingThreshold) {
		summary.Shipping = e.policy.FlatShippingFee
	}

	net := summary.Subtotal.Div(decimal.NewFromInt(1).Add(e.policy.VATRate))
	summary.VAT = summary.Subtotal.Sub(net)
	summary.Total = summary.Subtotal.Add(summary.Shipping)

	return summary
}
