package models

import (
	"fmt"
	"time"
)

// QuotaPerLevel is the number of redemptions required per level.
const QuotaPerLevel = 5

// QuotaForLevel returns the redemption threshold of a level.
func QuotaForLevel(level int) int {
	return level * QuotaPerLevel
}

// ReferralRecord holds a user's referral counter.
type ReferralRecord struct {
	UserID              string
	Token               string
	Count               int
	Quota               int
	Level               int
	WhatsappRequestSent bool
	Active              bool
	UpdatedAt           time.Time
}

// Status messages shown for a referral record, by precedence.
const (
	StatusInactive     = "Referral program is not active"
	StatusRequestSent  = "Payment request sent, an operator will contact you"
	StatusReadyToClaim = "Quota reached, ready to claim your reward!"
)

// ReferralView is the derived, never persisted presentation of a record.
type ReferralView struct {
	UserID            string
	Token             string
	Level             int
	Count             int
	Quota             int
	Progress          float64
	DisplayText       string
	GiftButtonVisible bool
	StatusMessage     string
}

// View computes the derived fields of r.
func (r *ReferralRecord) View() ReferralView {
	v := ReferralView{
		UserID:      r.UserID,
		Token:       r.Token,
		Level:       r.Level,
		Count:       r.Count,
		Quota:       r.Quota,
		DisplayText: fmt.Sprintf("%d/%d invites (level %d)", r.Count, r.Quota, r.Level),
	}
	if r.Quota > 0 {
		v.Progress = float64(r.Count) / float64(r.Quota)
		if v.Progress > 1 {
			v.Progress = 1
		}
	}
	quotaReached := r.Count >= r.Quota
	v.GiftButtonVisible = r.Active && quotaReached && !r.WhatsappRequestSent

	switch {
	case !r.Active:
		v.StatusMessage = StatusInactive
	case r.WhatsappRequestSent:
		v.StatusMessage = StatusRequestSent
	case quotaReached:
		v.StatusMessage = StatusReadyToClaim
	default:
		v.StatusMessage = fmt.Sprintf("Invite %d more friends to unlock your reward", r.Quota-r.Count)
	}
	return v
}
