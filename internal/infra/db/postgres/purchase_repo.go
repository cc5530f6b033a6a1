package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
)

var _ repository.PurchaseRepository = (*PurchaseRepo)(nil)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

const purchaseColumns = `id, user_id, content_id, season_number, order_id, amount, currency,
       status, payment_method, purchased_at, completed_at, updated_at`

func scanPurchase(row pgx.Row) (*model.Purchase, error) {
	var (
		p      model.Purchase
		season *int32
		status string
	)
	if err := row.Scan(
		&p.ID, &p.UserID, &p.ContentID, &season, &p.OrderID, &p.Amount, &p.Currency,
		&status, &p.PaymentMethod, &p.PurchasedAt, &p.CompletedAt, &p.UpdatedAt,
	); err != nil {
		return nil, err
	}
	if season != nil {
		n := int(*season)
		p.SeasonNumber = &n
	}
	p.Status = model.PurchaseStatus(status)
	return &p, nil
}

func seasonArg(season *int) interface{} {
	if season == nil {
		return nil
	}
	return int32(*season)
}

func (r *PurchaseRepo) Insert(ctx context.Context, tx repository.Tx, p *model.Purchase) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO purchases (` + purchaseColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
`
	_, err = exec.Exec(ctx, q,
		p.ID, p.UserID, p.ContentID, seasonArg(p.SeasonNumber), p.OrderID, p.Amount, p.Currency,
		string(p.Status), p.PaymentMethod, p.PurchasedAt, p.CompletedAt, p.UpdatedAt,
	)
	return mapErr("insert purchase", err)
}

func (r *PurchaseRepo) FindByOrderID(ctx context.Context, tx repository.Tx, orderID string) (*model.Purchase, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	q := `SELECT ` + purchaseColumns + ` FROM purchases WHERE order_id = $1`
	if _, ok := tx.(pgx.Tx); ok {
		q += ` FOR UPDATE`
	}
	p, err := scanPurchase(exec.QueryRow(ctx, q, orderID))
	if err != nil {
		return nil, mapErr("find purchase by order id", err)
	}
	return p, nil
}

func (r *PurchaseRepo) FindByTuple(ctx context.Context, tx repository.Tx, userID, contentID string, season *int, status model.PurchaseStatus) (*model.Purchase, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + purchaseColumns + `
  FROM purchases
 WHERE user_id = $1
   AND content_id = $2
   AND COALESCE(season_number, -1) = COALESCE($3::int, -1)
   AND status = $4
 ORDER BY purchased_at DESC
 LIMIT 1;
`
	p, err := scanPurchase(exec.QueryRow(ctx, q, userID, contentID, seasonArg(season), string(status)))
	if err != nil {
		return nil, mapErr("find purchase by tuple", err)
	}
	return p, nil
}

// TransitionIfStatus is a single conditional UPDATE, so concurrent callers converge:
// exactly one sees the updated row and the rest get (nil, nil).
func (r *PurchaseRepo) TransitionIfStatus(ctx context.Context, tx repository.Tx, orderID string, from, to model.PurchaseStatus, at time.Time) (*model.Purchase, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
UPDATE purchases
   SET status       = $3,
       updated_at   = $4,
       completed_at = CASE WHEN $3 = 'completed' THEN $4 ELSE completed_at END
 WHERE order_id = $1
   AND status   = $2
RETURNING ` + purchaseColumns + `;
`
	p, err := scanPurchase(exec.QueryRow(ctx, q, orderID, string(from), string(to), at))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, mapErr("transition purchase", err)
	}
	return p, nil
}

func (r *PurchaseRepo) ListByUser(ctx context.Context, tx repository.Tx, userID string, status model.PurchaseStatus) ([]*model.Purchase, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + purchaseColumns + `
  FROM purchases
 WHERE user_id = $1 AND status = $2
 ORDER BY purchased_at DESC;
`
	return queryPurchases(ctx, exec, q, userID, string(status))
}

func (r *PurchaseRepo) ListSeasonsByStatus(ctx context.Context, tx repository.Tx, userID, contentID string, status model.PurchaseStatus) ([]int, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT DISTINCT season_number
  FROM purchases
 WHERE user_id = $1 AND content_id = $2 AND status = $3 AND season_number IS NOT NULL
 ORDER BY season_number;
`
	rows, err := exec.Query(ctx, q, userID, contentID, string(status))
	if err != nil {
		return nil, mapErr("list purchased seasons", err)
	}
	defer rows.Close()
	out := []int{}
	for rows.Next() {
		var n int32
		if err := rows.Scan(&n); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, int(n))
	}
	return out, mapErr("list purchased seasons", rows.Err())
}

func (r *PurchaseRepo) ListPendingOlderThan(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]*model.Purchase, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT ` + purchaseColumns + `
  FROM purchases
 WHERE status = 'pending' AND purchased_at < $1
 ORDER BY purchased_at
 LIMIT $2;
`
	return queryPurchases(ctx, exec, q, olderThan, limit)
}

func queryPurchases(ctx context.Context, exec executor, q string, args ...interface{}) ([]*model.Purchase, error) {
	rows, err := exec.Query(ctx, q, args...)
	if err != nil {
		return nil, mapErr("query purchases", err)
	}
	defer rows.Close()
	var out []*model.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, p)
	}
	return out, mapErr("query purchases", rows.Err())
}
