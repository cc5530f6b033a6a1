package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
)

var _ repository.SeasonPriceRepository = (*SeasonPriceRepo)(nil)

type SeasonPriceRepo struct {
	pool *pgxpool.Pool
}

func NewSeasonPriceRepo(pool *pgxpool.Pool) *SeasonPriceRepo {
	return &SeasonPriceRepo{pool: pool}
}

func (r *SeasonPriceRepo) Get(ctx context.Context, tx repository.Tx, contentID string, season int) (*model.SeasonPrice, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT content_id, season_number, price, updated_at
  FROM season_prices
 WHERE content_id = $1 AND season_number = $2;
`
	var (
		sp model.SeasonPrice
		n  int32
	)
	if err := exec.QueryRow(ctx, q, contentID, int32(season)).Scan(&sp.ContentID, &n, &sp.Price, &sp.UpdatedAt); err != nil {
		return nil, mapErr("get season price", err)
	}
	sp.SeasonNumber = int(n)
	return &sp, nil
}

func (r *SeasonPriceRepo) Upsert(ctx context.Context, tx repository.Tx, sp *model.SeasonPrice) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO season_prices (content_id, season_number, price, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (content_id, season_number) DO UPDATE
  SET price      = EXCLUDED.price,
      updated_at = EXCLUDED.updated_at;
`
	_, err = exec.Exec(ctx, q, sp.ContentID, int32(sp.SeasonNumber), sp.Price, sp.UpdatedAt)
	return mapErr("upsert season price", err)
}

func (r *SeasonPriceRepo) Delete(ctx context.Context, tx repository.Tx, contentID string, season int) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	ct, err := exec.Exec(ctx, `DELETE FROM season_prices WHERE content_id = $1 AND season_number = $2;`, contentID, int32(season))
	if err != nil {
		return mapErr("delete season price", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *SeasonPriceRepo) ListByContent(ctx context.Context, tx repository.Tx, contentID string) ([]*model.SeasonPrice, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT content_id, season_number, price, updated_at
  FROM season_prices
 WHERE content_id = $1
 ORDER BY season_number;
`
	rows, err := exec.Query(ctx, q, contentID)
	if err != nil {
		return nil, mapErr("list season prices", err)
	}
	defer rows.Close()
	var out []*model.SeasonPrice
	for rows.Next() {
		var (
			sp model.SeasonPrice
			n  int32
		)
		if err := rows.Scan(&sp.ContentID, &n, &sp.Price, &sp.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		sp.SeasonNumber = int(n)
		out = append(out, &sp)
	}
	return out, mapErr("list season prices", rows.Err())
}
