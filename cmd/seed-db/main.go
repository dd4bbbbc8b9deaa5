// Command seed-db loads products and coupons from JSON files into the
// database. Existing rows (matched by id or code) are left untouched.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/blocohub/checkout/internal/storage/postgres"
)

type productJSON struct {
	ID                      string `json:"id"`
	Name                    string `json:"name"`
	PriceInCents            int64  `json:"price_in_cents"`
	PromotionalPriceInCents *int64 `json:"promotional_price_in_cents"`
	MinimumPriceInCents     int64  `json:"minimum_price_in_cents"`
	StockQuantity           int    `json:"stock_quantity"`
	IsActive                bool   `json:"is_active"`
}

type couponJSON struct {
	Code                    string          `json:"code"`
	Type                    string          `json:"type"`
	DiscountPercentage      decimal.Decimal `json:"discount_percentage"`
	MaxDiscountInCents      *int64          `json:"max_discount_in_cents"`
	MinPurchaseValueInCents int64           `json:"min_purchase_value_in_cents"`
	IsCumulative            bool            `json:"is_cumulative"`
	UsageLimitPerUser       int             `json:"usage_limit_per_user"`
	UsageLimitGlobal        int             `json:"usage_limit_global"`
	ExpirationDate          *time.Time      `json:"expiration_date"`
	IsActive                bool            `json:"is_active"`
}

const (
	insertProductSQL = `INSERT INTO products (id, name, price_in_cents,
		promotional_price_in_cents, minimum_price_in_cents, stock_quantity, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	insertCouponSQL = `INSERT INTO coupons (code, type, discount_percentage,
		max_discount_in_cents, min_purchase_value_in_cents, is_cumulative,
		usage_limit_per_user, usage_limit_global, expiration_date, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (code) DO NOTHING`
)

func main() {
	var (
		databaseURL  string
		productsFile string
		couponsFile  string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&couponsFile, "coupons-file", "", "path to coupons JSON file (optional)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, couponsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, couponsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if couponsFile != "" {
		if err := seedCoupons(ctx, pool, couponsFile); err != nil {
			return errors.Wrap(err, "seed coupons")
		}
	}
	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products file")
	}

	for _, p := range products {
		_, err := pool.Exec(ctx, insertProductSQL,
			p.ID, p.Name, p.PriceInCents, p.PromotionalPriceInCents,
			p.MinimumPriceInCents, p.StockQuantity, p.IsActive,
		)
		if err != nil {
			return errors.Wrapf(err, "insert product %q", p.ID)
		}
	}

	slog.Info("products seeded", slog.Int("count", len(products)))
	return nil
}

func seedCoupons(ctx context.Context, pool *pgxpool.Pool, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read coupons file")
	}

	var coupons []couponJSON
	if err := json.Unmarshal(data, &coupons); err != nil {
		return errors.Wrap(err, "parse coupons file")
	}

	for _, c := range coupons {
		_, err := pool.Exec(ctx, insertCouponSQL,
			c.Code, c.Type, c.DiscountPercentage, c.MaxDiscountInCents,
			c.MinPurchaseValueInCents, c.IsCumulative, c.UsageLimitPerUser,
			c.UsageLimitGlobal, c.ExpirationDate, c.IsActive,
		)
		if err != nil {
			return errors.Wrapf(err, "insert coupon %q", c.Code)
		}
	}

	slog.Info("coupons seeded", slog.Int("count", len(coupons)))
	return nil
}
