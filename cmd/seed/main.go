package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v4"

	"github.com/zeyera-studio/zeyera-studio-main/internal/config"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
	"github.com/zeyera-studio/zeyera-studio-main/internal/infra/adapters/payment"
	pg "github.com/zeyera-studio/zeyera-studio-main/internal/infra/db/postgres"
)

func main() {
	// ---- Config ----
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Connect Postgres
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	contents := pg.NewContentRepo(pool)
	seasons := pg.NewSeasonPriceRepo(pool)
	txm := pg.NewTxManager(pool)

	price := func(v int64) *int64 { return &v }

	// Sample catalog for exercising the checkout flow against the PayHere sandbox.
	catalog := []*model.Content{
		{ID: "movie-dune", Title: "Dune", Type: model.ContentTypeMovie, Price: price(150_000)},
		{ID: "movie-trailers", Title: "Trailer Reel", Type: model.ContentTypeMovie},
		{ID: "series-dark", Title: "Dark", Type: model.ContentTypeTVSeries, Price: price(300_000)},
	}
	overrides := []struct {
		ContentID string
		Season    int
		Price     int64
	}{
		{"series-dark", 1, 90_000},
		{"series-dark", 2, 110_000},
		{"series-dark", 3, 0},
	}

	err = txm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		for _, c := range catalog {
			if err := contents.Upsert(ctx, tx, c); err != nil {
				return fmt.Errorf("upsert %s: %w", c.ID, err)
			}
		}
		for _, o := range overrides {
			sp, err := model.NewSeasonPrice(o.ContentID, o.Season, o.Price)
			if err != nil {
				return err
			}
			if err := seasons.Upsert(ctx, tx, sp); err != nil {
				return fmt.Errorf("upsert %s season %d: %w", o.ContentID, o.Season, err)
			}
		}
		return nil
	})
	if err != nil {
		log.Fatalf("seed: %v", err)
	}

	for _, c := range catalog {
		fmt.Printf("seeded: %s %q (%s, price=%s %s)\n", c.ID, c.Title, c.Type, payment.FormatAmount(c.DefaultPrice()), cfg.Payment.Currency)
	}
	for _, o := range overrides {
		fmt.Printf("  season %d of %s: %s %s\n", o.Season, o.ContentID, payment.FormatAmount(o.Price), cfg.Payment.Currency)
	}
	fmt.Println("Seeding complete.")
}
