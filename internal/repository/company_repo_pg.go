package repository

import (
	"context"
	"errors"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGCompanyRepository struct {
	db *pgxpool.Pool
}

func NewCompanyRepository(db *pgxpool.Pool) CompanyRepository {
	return &PGCompanyRepository{db: db}
}

func (r *PGCompanyRepository) Get(ctx context.Context) (*domain.CompanyInfo, error) {
	var c domain.CompanyInfo
	err := r.db.QueryRow(ctx, `SELECT name, description, address, phone, email, updated_at
		FROM company_info WHERE id = 1`).
		Scan(&c.Name, &c.Description, &c.Address, &c.Phone, &c.Email, &c.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrCompanyNotFound
	}
	if err != nil {
		return nil, classify(err)
	}
	return &c, nil
}

func (r *PGCompanyRepository) Save(ctx context.Context, c *domain.CompanyInfo) error {
	err := r.db.QueryRow(ctx, `INSERT INTO company_info (id, name, description, address, phone, email)
		VALUES (1, $1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, description = EXCLUDED.description,
			address = EXCLUDED.address, phone = EXCLUDED.phone, email = EXCLUDED.email, updated_at = now()
		RETURNING updated_at`,
		c.Name, c.Description, c.Address, c.Phone, c.Email).Scan(&c.UpdatedAt)
	return classify(err)
}

var _ CompanyRepository = (*PGCompanyRepository)(nil)
