package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/subcharge/backend/internal/domain"
)

// SubscriptionRepository handles database operations for billing targets.
type SubscriptionRepository struct {
	db *pgxpool.Pool
}

// NewSubscriptionRepository creates a new SubscriptionRepository.
func NewSubscriptionRepository(db *pgxpool.Pool) *SubscriptionRepository {
	return &SubscriptionRepository{db: db}
}

// FindDue returns every active subscription whose next billing date has
// elapsed at now. Rows are ordered by next billing date so a call produces a
// stable, duplicate-free set.
func (r *SubscriptionRepository) FindDue(ctx context.Context, now time.Time) ([]domain.BillingTarget, error) {
	query := `
		SELECT id, kind, email, unit_amount, quantity, line_items, active, next_billing_date
		FROM subscriptions
		WHERE active = TRUE AND next_billing_date <= $1
		ORDER BY next_billing_date
	`
	rows, err := r.db.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due subscriptions: %w", err)
	}
	defer rows.Close()

	var targets []domain.BillingTarget
	for rows.Next() {
		var (
			id, kind, email string
			unitAmount      float64
			quantity        int64
			lineItems       []byte
			active          bool
			nextBilling     time.Time
		)
		if err := rows.Scan(&id, &kind, &email, &unitAmount, &quantity, &lineItems, &active, &nextBilling); err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}

		switch domain.SubscriptionKind(kind) {
		case domain.KindOrder:
			var items []domain.LineItem
			if len(lineItems) > 0 {
				if err := json.Unmarshal(lineItems, &items); err != nil {
					return nil, fmt.Errorf("failed to decode line items for subscription %s: %w", id, err)
				}
			}
			targets = append(targets, &domain.OrderSubscription{
				SubscriptionID:  id,
				OwnerEmail:      email,
				Items:           items,
				Active:          active,
				NextBillingDate: nextBilling,
			})
		default:
			targets = append(targets, &domain.ProductSubscription{
				SubscriptionID:  id,
				OwnerEmail:      email,
				UnitAmount:      unitAmount,
				Quantity:        quantity,
				Active:          active,
				NextBillingDate: nextBilling,
			})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read due subscriptions: %w", err)
	}
	return targets, nil
}

// Reschedule persists a new next billing date for one subscription.
func (r *SubscriptionRepository) Reschedule(ctx context.Context, id string, next time.Time) error {
	tag, err := r.db.Exec(ctx,
		"UPDATE subscriptions SET next_billing_date = $1, updated_at = NOW() WHERE id = $2",
		next, id,
	)
	if err != nil {
		return fmt.Errorf("failed to reschedule subscription %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrSubscriptionNotFound
	}
	return nil
}
