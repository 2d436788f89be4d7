// Package seed loads the default catalog and administrator account.
package seed

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/safar/go-storefront/internal/auth"
	"github.com/safar/go-storefront/internal/database"
	"github.com/safar/go-storefront/internal/models"
	"github.com/safar/go-storefront/internal/store"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultAdminEmail    = "admin@moggesstore.se"
	DefaultAdminPassword = "admin123"
)

func product(name, description string, price int64, category string, stock int, image string) models.ProductInput {
	return models.ProductInput{
		Name:        name,
		Description: description,
		Price:       decimal.NewFromInt(price),
		Stock:       stock,
		Category:    category,
		Image:       image,
	}
}

var Products = []models.ProductInput{
	product("Elegant Sommarklanning", "Latt och luftig klanning perfekt for varma sommardagar", 599, "Dam Mode", 15, "picture/1.jpg"),
	product("Modern Herrjacka", "Stilren jacka for bade vardag och fest", 899, "Herr Mode", 8, "picture/2.jpg"),
	product("Designervaska", "Exklusiv handvaska i akta lader", 1299, "Accessoarer", 5, "picture/3.jpg"),
	product("Klassisk Blus", "Tidlos blus som passar till allt", 449, "Dam Mode", 20, "picture/4.jpg"),
	product("Sport Sneakers", "Bekvama och moderna sneakers", 799, "Skor", 12, "picture/5.jpg"),
	product("Vinterkappa Dam", "Varm och stilfull vinterkappa", 1599, "Dam Mode", 6, "picture/1.jpg"),
	product("Herrskjorta Premium", "Hogkvalitativ bomullsskjorta", 549, "Herr Mode", 18, "picture/2.jpg"),
	product("Solglasogon Designer", "Trendiga solglasogon med UV-skydd", 399, "Accessoarer", 25, "picture/3.jpg"),
}

type Result struct {
	ProductsInserted int
	AdminCreated     bool
}

// Run inserts the default catalog when the products table is empty and
// creates the admin account when it does not exist. Both happen in one
// transaction, so a failed seed leaves nothing behind.
func Run(ctx context.Context, db *sql.DB, adminEmail, adminPassword string, log *zap.Logger) (Result, error) {
	if log == nil {
		log = zap.NewNop()
	}

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return Result{}, err
	}

	var res Result
	err = database.WithRetry(ctx, db, database.DefaultTxOptions(), func(tx *sql.Tx) error {
		res = Result{}
		products := store.NewProductStore(tx)
		users := store.NewUserStore(tx)

		count, err := products.CountProducts(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			for _, p := range Products {
				if _, err := products.CreateProduct(ctx, p); err != nil {
					return fmt.Errorf("seed product %q: %w", p.Name, err)
				}
				res.ProductsInserted++
			}
		}

		_, err = users.GetUserByEmail(ctx, adminEmail)
		switch {
		case err == nil:
			return nil
		case !errors.Is(err, database.ErrUserNotFound):
			return err
		}

		if _, err := users.CreateUser(ctx, adminEmail, hash, models.RoleAdmin); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
		res.AdminCreated = true
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	log.Info("Seed complete",
		zap.Int("products_inserted", res.ProductsInserted),
		zap.Bool("admin_created", res.AdminCreated),
	)
	return res, nil
}
