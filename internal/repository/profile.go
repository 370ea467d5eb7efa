package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subcharge/backend/internal/domain"
)

// ProfileRepository handles database operations for payment profiles.
type ProfileRepository struct {
	db *pgxpool.Pool
}

// NewProfileRepository creates a new ProfileRepository.
func NewProfileRepository(db *pgxpool.Pool) *ProfileRepository {
	return &ProfileRepository{db: db}
}

// FindByEmail returns the payment profile for an email, or nil when none
// exists.
func (r *ProfileRepository) FindByEmail(ctx context.Context, email string) (*domain.PaymentProfile, error) {
	query := `
		SELECT email, customer_id, payment_method_id, created_at, updated_at
		FROM payment_profiles WHERE email = $1
	`
	row := r.db.QueryRow(ctx, query, email)

	var p domain.PaymentProfile
	err := row.Scan(&p.Email, &p.CustomerID, &p.PaymentMethodID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find payment profile: %w", err)
	}
	return &p, nil
}

// Upsert inserts a profile or replaces the customer/payment-method pair for
// an existing email. At most one profile exists per email.
func (r *ProfileRepository) Upsert(ctx context.Context, p *domain.PaymentProfile) error {
	query := `
		INSERT INTO payment_profiles (email, customer_id, payment_method_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (email) DO UPDATE
		SET customer_id = EXCLUDED.customer_id,
		    payment_method_id = EXCLUDED.payment_method_id,
		    updated_at = NOW()
	`
	_, err := r.db.Exec(ctx, query, p.Email, p.CustomerID, p.PaymentMethodID)
	if err != nil {
		return fmt.Errorf("failed to upsert payment profile: %w", err)
	}
	return nil
}
