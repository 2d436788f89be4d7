package catalog

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"github.com/shopspring/decimal"
)

// ProductFields is the request body for product create and update. Pointer
// fields distinguish "absent" from zero values.
type ProductFields struct {
	Name        *string          `json:"name" validate:"required,min=1"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int             `json:"stock" validate:"omitempty,gte=0,lte=2147483647"`
	Category    *string          `json:"category"`
	Image       *string          `json:"image"`
}

type QuoteRequest struct {
	Items []pricing.Line `json:"items" validate:"required,dive"`
}

// maxPrice matches the NUMERIC(12,2) price column.
var maxPrice = decimal.New(1, 10)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate runs the struct tags of any request schema and converts failures
// into a single validation error.
func Validate(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.Validation("Invalid request")
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		switch fe.Tag() {
		case "required", "min":
			msgs = append(msgs, fmt.Sprintf("%s is required", fe.Field()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must not be negative", fe.Field()))
		case "lte":
			msgs = append(msgs, fmt.Sprintf("%s is too large", fe.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", fe.Field()))
		}
	}
	return apperr.Validation(strings.Join(msgs, "; "))
}

// toInput validates f and resolves defaults for absent optional fields.
func (f ProductFields) toInput() (models.ProductInput, error) {
	if err := Validate(f); err != nil {
		return models.ProductInput{}, err
	}
	if f.Price.IsNegative() {
		return models.ProductInput{}, apperr.Validation("price must not be negative")
	}
	if f.Price.GreaterThanOrEqual(maxPrice) {
		return models.ProductInput{}, apperr.Validation("price is too large")
	}
	if !f.Price.Equal(f.Price.Round(2)) {
		return models.ProductInput{}, apperr.Validation("price must have at most 2 decimal places")
	}

	in := models.ProductInput{
		Name:  *f.Name,
		Price: *f.Price,
		Image: models.PlaceholderImage,
	}
	if f.Description != nil {
		in.Description = *f.Description
	}
	if f.Stock != nil {
		in.Stock = *f.Stock
	}
	if f.Category != nil {
		in.Category = *f.Category
	}
	if f.Image != nil && *f.Image != "" {
		in.Image = *f.Image
	}
	return in, nil
}
