package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"github.com/zeyera-studio/zeyera-studio-main/internal/domain"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/model"
	"github.com/zeyera-studio/zeyera-studio-main/internal/domain/ports/repository"
)

var _ repository.ContentRepository = (*ContentRepo)(nil)

// ContentRepo reads the catalog table owned by the content store. Only the price column
// is written from here.
type ContentRepo struct {
	pool *pgxpool.Pool
}

func NewContentRepo(pool *pgxpool.Pool) *ContentRepo {
	return &ContentRepo{pool: pool}
}

func (r *ContentRepo) FindByID(ctx context.Context, tx repository.Tx, contentID string) (*model.Content, error) {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	const q = `
SELECT id, title, content_type, price
  FROM content
 WHERE id = $1;
`
	var (
		c   model.Content
		typ string
	)
	if err := exec.QueryRow(ctx, q, contentID).Scan(&c.ID, &c.Title, &typ, &c.Price); err != nil {
		return nil, mapErr("find content", err)
	}
	c.Type = model.ContentType(typ)
	return &c, nil
}

func (r *ContentRepo) SetPrice(ctx context.Context, tx repository.Tx, contentID string, price int64) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	ct, err := exec.Exec(ctx, `UPDATE content SET price = $2 WHERE id = $1;`, contentID, price)
	if err != nil {
		return mapErr("set content price", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Upsert is used by the seed tool; the catalog itself is managed elsewhere.
func (r *ContentRepo) Upsert(ctx context.Context, tx repository.Tx, c *model.Content) error {
	exec, err := getExecutor(r.pool, tx)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO content (id, title, content_type, price)
VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE
  SET title        = EXCLUDED.title,
      content_type = EXCLUDED.content_type,
      price        = EXCLUDED.price;
`
	_, err = exec.Exec(ctx, q, c.ID, c.Title, string(c.Type), c.Price)
	return mapErr("upsert content", err)
}
