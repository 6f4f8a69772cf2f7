// Package referrals is the Referral Counter Store. Every counter mutation is
// a single conditional statement, so concurrent increments can never push a
// counter past its quota.
package referrals

import (
	"context"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
)

// Repository stores per-user referral counters. Missing rows yield
// common.ErrorNotFound; a conditional update that matched nothing yields
// common.ErrorConflict.
type Repository interface {
	// Create inserts rec; common.ErrorAlreadyExists if the user already has one.
	Create(ctx context.Context, rec *models.ReferralRecord) error
	GetByUserID(ctx context.Context, userID string) (*models.ReferralRecord, error)
	GetByToken(ctx context.Context, token string) (*models.ReferralRecord, error)

	// Increment adds one to the counter addressed by token if it is active
	// and below quota.
	Increment(ctx context.Context, token string, now time.Time) error

	// Redeem increments once per (token, redemptionID). Replaying a
	// redemption id is a no-op that reports applied=false.
	Redeem(ctx context.Context, token, redemptionID string, now time.Time) (applied bool, err error)

	// MarkRequestSent flips whatsapp_request_sent from false to true, only
	// while the quota is reached.
	MarkRequestSent(ctx context.Context, userID string, now time.Time) error

	// Deactivate closes an active record; the counter stops accepting
	// redemptions. common.ErrorConflict if it is missing or already inactive.
	Deactivate(ctx context.Context, userID string, now time.Time) error

	// AdvanceLevel moves to the next level: count 0, quota level*5, flag reset.
	AdvanceLevel(ctx context.Context, userID string, now time.Time) (*models.ReferralRecord, error)
}
