// Command seed-db loads a catalog file into the PostgreSQL products table
// used by the postgres catalog source.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/neostore/internal/domain/product"
	"github.com/xenking/neostore/internal/storage/file"
	"github.com/xenking/neostore/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "data/products.json", "path to the catalog file (.json or .json.gz)")
	flag.Parse()

	lg, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = lg.Sync() }()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		lg.Fatal("Database URL is required: set --database-url or DATABASE_URL")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, lg, databaseURL, productsFile); err != nil {
		lg.Fatal("Seed failed", zap.Error(err))
	}

	lg.Info("Seed completed")
}

func run(ctx context.Context, lg *zap.Logger, databaseURL, productsFile string) error {
	lg.Info("Reading catalog", zap.String("path", productsFile))

	products, err := file.NewCatalogSource(productsFile).Fetch(ctx)
	if err != nil {
		return errors.Wrap(err, "read catalog")
	}

	// Seed what the storefront would accept on load.
	catalog := product.NewCatalog()
	if err := catalog.Replace(products); err != nil {
		return errors.Wrap(err, "validate catalog")
	}
	products = catalog.List()

	lg.Info("Connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	repo := postgres.NewProductRepository(pool)
	if err := repo.Upsert(ctx, products); err != nil {
		return errors.Wrap(err, "upsert products")
	}

	lg.Info("Upserted products", zap.Int("count", len(products)))
	return nil
}
