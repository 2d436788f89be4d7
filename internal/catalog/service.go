// Package catalog serves the product catalog. Reads are public; every write
// passes the admin guard before validation or storage is touched.
package catalog

import (
	"context"
	"errors"

	"github.com/safar/go-storefront/internal/apperr"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/pricing"
	"go.uber.org/zap"
)

type ProductRepository interface {
	ListProducts(ctx context.Context) ([]models.Product, error)
	GetProduct(ctx context.Context, id int64) (*models.Product, error)
	CreateProduct(ctx context.Context, in models.ProductInput) (int64, error)
	UpdateProduct(ctx context.Context, id int64, in models.ProductInput) error
	DeleteProduct(ctx context.Context, id int64) error
}

type Guard interface {
	RequireAdmin(ctx context.Context, sessionID string) (*models.Session, error)
}

var errProductNotFound = apperr.NotFound("Product not found")

type Service struct {
	products ProductRepository
	guard    Guard
	engine   *pricing.Engine
	log      *zap.Logger
}

func NewService(products ProductRepository, guard Guard, engine *pricing.Engine, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{products: products, guard: guard, engine: engine, log: log}
}

func (s *Service) ListProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.products.ListProducts(ctx)
	if err != nil {
		return nil, apperr.Store("list products", err)
	}
	return products, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	product, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, translate("get product", err)
	}
	return product, nil
}

func (s *Service) CreateProduct(ctx context.Context, sessionID string, fields ProductFields) (int64, error) {
	admin, err := s.guard.RequireAdmin(ctx, sessionID)
	if err != nil {
		return 0, err
	}

	in, err := fields.toInput()
	if err != nil {
		return 0, err
	}

	id, err := s.products.CreateProduct(ctx, in)
	if err != nil {
		return 0, apperr.Store("create product", err)
	}

	s.log.Info("Product created", zap.Int64("product_id", id), zap.String("by", admin.Email))
	return id, nil
}

// UpdateProduct replaces every mutable field. Omitted optional fields fall
// back to their defaults rather than keeping the stored value.
func (s *Service) UpdateProduct(ctx context.Context, sessionID string, id int64, fields ProductFields) error {
	admin, err := s.guard.RequireAdmin(ctx, sessionID)
	if err != nil {
		return err
	}

	in, err := fields.toInput()
	if err != nil {
		return err
	}

	if err := s.products.UpdateProduct(ctx, id, in); err != nil {
		return translate("update product", err)
	}

	s.log.Info("Product updated", zap.Int64("product_id", id), zap.String("by", admin.Email))
	return nil
}

func (s *Service) DeleteProduct(ctx context.Context, sessionID string, id int64) error {
	admin, err := s.guard.RequireAdmin(ctx, sessionID)
	if err != nil {
		return err
	}

	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return translate("delete product", err)
	}

	s.log.Info("Product deleted", zap.Int64("product_id", id), zap.String("by", admin.Email))
	return nil
}

// Quote prices cart against the live catalog.
func (s *Service) Quote(ctx context.Context, cart pricing.Cart) (pricing.Summary, error) {
	if err := cart.Validate(); err != nil {
		return pricing.Summary{}, err
	}

	snapshot, err := s.products.ListProducts(ctx)
	if err != nil {
		return pricing.Summary{}, apperr.Store("load catalog snapshot", err)
	}

	return s.engine.Quote(cart, snapshot), nil
}

// Confirm recomputes the quote for a checkout. Nothing is charged and stock
// is left untouched.
func (s *Service) Confirm(ctx context.Context, cart pricing.Cart) (pricing.Summary, error) {
	summary, err := s.Quote(ctx, cart)
	if err != nil {
		return pricing.Summary{}, err
	}
	if len(summary.LineItems) == 0 {
		return pricing.Summary{}, apperr.Validation("Cart is empty")
	}

	s.log.Info("Checkout confirmed",
		zap.Int("lines", len(summary.LineItems)),
		zap.String("total", summary.Total.String()),
	)
	return summary, nil
}

func translate(op string, err error) error {
	if errors.Is(err, database.ErrProductNotFound) {
		return errProductNotFound
	}
	return apperr.Store(op, err)
}
