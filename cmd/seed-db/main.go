// Command seed-db populates a fresh database with demo catalog items,
// delivery zones, collection points, coupons, gift cards, and an admin API
// key. Safe to re-run: everything is upserted.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/feastbox/checkout-api/internal/repository"
)

const (
	demoMeals     = 12
	demoGiftCards = 5
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or FEAST_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or FEAST_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("FEAST_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or FEAST_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("FEAST_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedFulfillment(ctx, pool); err != nil {
		return errors.Wrap(err, "seed fulfillment")
	}
	if err := seedCoupons(ctx, pool); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedGiftCards(ctx, pool); err != nil {
		return errors.Wrap(err, "seed gift cards")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

const upsertCatalogItemSQL = `INSERT INTO catalog_items (id, name, price, kind, category, contents)
	VALUES ($1, $2, $3, $4, $5, $6)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, price = EXCLUDED.price,
		kind = EXCLUDED.kind, category = EXCLUDED.category, contents = EXCLUDED.contents`

func seedCatalog(ctx context.Context, pool *pgxpool.Pool) error {
	faker := gofakeit.New(42)

	mealIDs := make([]string, 0, demoMeals)
	for i := range demoMeals {
		id := fmt.Sprintf("meal-%02d", i+1)
		name := faker.Dinner()
		price := decimal.NewFromFloat(faker.Price(6.5, 14)).Round(2)
		category := faker.RandomString([]string{"classics", "vegetarian", "spicy", "light"})

		if _, err := pool.Exec(ctx, upsertCatalogItemSQL, id, name, price, "meal", category, "{}"); err != nil {
			return errors.Wrapf(err, "upsert meal %s", id)
		}
		mealIDs = append(mealIDs, id)
		slog.Info("upserted meal", slog.String("id", id), slog.String("name", name))
	}

	// One fixed family package bundling the first meals at a bundle price.
	contents, err := json.Marshal(map[string]int{mealIDs[0]: 2, mealIDs[1]: 2})
	if err != nil {
		return errors.Wrap(err, "marshal package contents")
	}
	if _, err := pool.Exec(ctx, upsertCatalogItemSQL,
		"package-family", "Family Dinner Box", decimal.RequireFromString("29.95"),
		"package", "packages", contents,
	); err != nil {
		return errors.Wrap(err, "upsert family package")
	}

	slog.Info("upserted package", slog.String("id", "package-family"))
	return nil
}

func seedFulfillment(ctx context.Context, pool *pgxpool.Pool) error {
	zones := []struct {
		id       string
		name     string
		prefixes []string
		fee      string
	}{
		{"zone-central", "Central London", []string{"EC", "WC", "SW1"}, "2.50"},
		{"zone-east", "East London", []string{"E"}, "3.50"},
		{"zone-south", "South London", []string{"SE", "SW"}, "4.00"},
	}
	for _, z := range zones {
		_, err := pool.Exec(ctx, `INSERT INTO delivery_zones (id, name, postcode_prefixes, delivery_fee)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name,
				postcode_prefixes = EXCLUDED.postcode_prefixes, delivery_fee = EXCLUDED.delivery_fee`,
			z.id, z.name, z.prefixes, decimal.RequireFromString(z.fee))
		if err != nil {
			return errors.Wrapf(err, "upsert zone %s", z.id)
		}
		slog.Info("upserted zone", slog.String("id", z.id))
	}

	points := []struct {
		id, name, address string
		fee               string
	}{
		{"cp-borough", "Borough Market Kiosk", "8 Southwark St, London SE1 1TL", "0.00"},
		{"cp-spitalfields", "Old Spitalfields Market", "16 Horner Square, London E1 6EW", "1.00"},
	}
	for _, p := range points {
		_, err := pool.Exec(ctx, `INSERT INTO collection_points (id, name, address, collection_fee)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address,
				collection_fee = EXCLUDED.collection_fee`,
			p.id, p.name, p.address, decimal.RequireFromString(p.fee))
		if err != nil {
			return errors.Wrapf(err, "upsert collection point %s", p.id)
		}
		slog.Info("upserted collection point", slog.String("id", p.id))
	}

	return nil
}

const upsertCouponSQL = `INSERT INTO coupons (code, kind, value, free_item_id, description, active)
	VALUES ($1, $2, $3, $4, $5, TRUE)
	ON CONFLICT (code) DO UPDATE SET kind = EXCLUDED.kind, value = EXCLUDED.value,
		free_item_id = EXCLUDED.free_item_id, description = EXCLUDED.description, active = TRUE`

func seedCoupons(ctx context.Context, pool *pgxpool.Pool) error {
	coupons := []struct {
		code, kind, value, freeItemID, description string
	}{
		{"WELCOME10", "percentage", "10", "", "10% off your first order"},
		{"FIVER", "fixed_amount", "5", "", "5.00 off any order"},
		{"FREESHIP", "free_delivery", "0", "", "Free delivery on this order"},
		{"TREAT", "free_item", "0", "meal-01", "One free meal on us"},
	}
	for _, c := range coupons {
		_, err := pool.Exec(ctx, upsertCouponSQL,
			c.code, c.kind, decimal.RequireFromString(c.value), c.freeItemID, c.description)
		if err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.code)
		}
		slog.Info("upserted coupon", slog.String("code", c.code))
	}
	return nil
}

func seedGiftCards(ctx context.Context, pool *pgxpool.Pool) error {
	faker := gofakeit.New(7)

	for i := range demoGiftCards {
		code := fmt.Sprintf("GIFT-%s", faker.LetterN(8))
		balance := decimal.NewFromInt(int64(faker.Number(10, 100)))

		_, err := pool.Exec(ctx, `INSERT INTO gift_cards (id, code, balance)
			VALUES ($1, $2, $3) ON CONFLICT (code) DO NOTHING`,
			uuid.New().String(), code, balance)
		if err != nil {
			return errors.Wrapf(err, "insert gift card %d", i+1)
		}
		slog.Info("inserted gift card", slog.String("code", code), slog.String("balance", balance.String()))
	}
	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	_, err := pool.Exec(ctx, `INSERT INTO api_keys (id, key_hash, name, scopes, active)
		VALUES ($1, $2, $3, $4, TRUE)
		ON CONFLICT (id) DO UPDATE SET key_hash = EXCLUDED.key_hash`,
		"default", keyHash, "Default admin key", []string{"admin"})
	if err != nil {
		return errors.Wrap(err, "upsert default API key")
	}

	slog.Info("upserted API key", slog.String("id", "default"))
	return nil
}
