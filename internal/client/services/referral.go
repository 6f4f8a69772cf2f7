package services

import (
	"context"
	"errors"

	"github.com/dmitrijs2005/smartyedu/internal/client/handoff"
	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/repositories/referrals"
	"github.com/dmitrijs2005/smartyedu/internal/common"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
	"github.com/dmitrijs2005/smartyedu/internal/timex"
	"github.com/dmitrijs2005/smartyedu/internal/watch"
	"github.com/google/uuid"
)

// ReferralService is the referral state machine: activation, counting,
// the one-time payment request per level and level advancement.
type ReferralService struct {
	repo         referrals.Repository
	conn         Connectivity
	opener       handoff.Opener
	supportPhone string
	now          timex.Clock
	logger       logging.Logger
	views        *watch.Broadcaster[models.ReferralView]
}

func NewReferralService(r referrals.Repository, c Connectivity, o handoff.Opener, supportPhone string, l logging.Logger) *ReferralService {
	return &ReferralService{
		repo:         r,
		conn:         c,
		opener:       o,
		supportPhone: supportPhone,
		now:          timex.UTCNow,
		logger:       l.With("module", "referral"),
		views:        watch.NewBroadcaster[models.ReferralView](),
	}
}

// Watch streams the view of every record after it changes.
func (s *ReferralService) Watch() (<-chan models.ReferralView, func()) {
	return s.views.Subscribe(8)
}

// ActivateBetaUser opens the referral program for userID and returns its token.
func (s *ReferralService) ActivateBetaUser(ctx context.Context, userID string) (string, error) {
	if _, err := s.repo.GetByUserID(ctx, userID); err == nil {
		return "", ErrReferralAlreadyActive
	} else if !errors.Is(err, common.ErrorNotFound) {
		return "", err
	}

	rec := &models.ReferralRecord{
		UserID:    userID,
		Token:     uuid.NewString(),
		Count:     0,
		Quota:     models.QuotaForLevel(1),
		Level:     1,
		Active:    true,
		UpdatedAt: s.now(),
	}
	if err := s.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return "", ErrReferralAlreadyActive
		}
		return "", err
	}

	s.logger.Info(ctx, "referral activated", "user_id", userID)
	s.views.Publish(rec.View())
	return rec.Token, nil
}

// IncrementReferral counts one redemption of token.
func (s *ReferralService) IncrementReferral(ctx context.Context, token string) error {
	if err := s.repo.Increment(ctx, token, s.now()); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return ErrQuotaReachedOrInvalidToken
		}
		return err
	}
	s.publishByToken(ctx, token)
	return nil
}

// RedeemReferral counts a redemption at most once per redemptionID.
// A replayed redemption is not an error.
func (s *ReferralService) RedeemReferral(ctx context.Context, token, redemptionID string) error {
	applied, err := s.repo.Redeem(ctx, token, redemptionID, s.now())
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return ErrQuotaReachedOrInvalidToken
		}
		return err
	}
	if applied {
		s.publishByToken(ctx, token)
	}
	return nil
}

// RequestPayment sends the one-time reward claim for the current level.
// The flag is persisted before the hand-off is attempted, so a crash in
// between can never lead to a second request.
func (s *ReferralService) RequestPayment(ctx context.Context, userID string) error {
	if !s.conn.Online() {
		return ErrConnectivityRequired
	}

	rec, err := s.load(ctx, userID)
	if err != nil {
		return err
	}
	if !rec.Active {
		return ErrReferralInactive
	}
	if rec.Count < rec.Quota {
		return ErrQuotaNotReached
	}
	if rec.WhatsappRequestSent {
		return ErrPaymentAlreadyRequested
	}

	now := s.now()
	if err := s.repo.MarkRequestSent(ctx, userID, now); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return ErrPaymentAlreadyRequested
		}
		return err
	}
	rec.WhatsappRequestSent = true
	rec.UpdatedAt = now
	s.views.Publish(rec.View())

	link := handoff.WhatsAppLink(s.supportPhone, handoff.NewPaymentRequest(rec, now))
	if err := s.opener.Open(ctx, link); err != nil {
		s.logger.Error(ctx, "payment hand-off failed", "user_id", userID, "error", err)
	}
	return nil
}

// AdvanceLevel moves a user whose reward was claimed to the next level.
func (s *ReferralService) AdvanceLevel(ctx context.Context, userID string) (models.ReferralView, error) {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return models.ReferralView{}, err
	}
	if !rec.WhatsappRequestSent {
		return models.ReferralView{}, ErrLevelNotComplete
	}

	next, err := s.repo.AdvanceLevel(ctx, userID, s.now())
	if err != nil {
		return models.ReferralView{}, err
	}
	v := next.View()
	s.views.Publish(v)
	return v, nil
}

// Deactivate closes userID's referral program. The token stops counting
// redemptions and no further reward can be claimed.
func (s *ReferralService) Deactivate(ctx context.Context, userID string) (models.ReferralView, error) {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return models.ReferralView{}, err
	}
	if !rec.Active {
		return models.ReferralView{}, ErrReferralInactive
	}

	now := s.now()
	if err := s.repo.Deactivate(ctx, userID, now); err != nil {
		if errors.Is(err, common.ErrorConflict) {
			return models.ReferralView{}, ErrReferralInactive
		}
		return models.ReferralView{}, err
	}
	rec.Active = false
	rec.UpdatedAt = now

	s.logger.Info(ctx, "referral deactivated", "user_id", userID)
	v := rec.View()
	s.views.Publish(v)
	return v, nil
}

// Status returns the derived view of userID's record.
func (s *ReferralService) Status(ctx context.Context, userID string) (models.ReferralView, error) {
	rec, err := s.load(ctx, userID)
	if err != nil {
		return models.ReferralView{}, err
	}
	return rec.View(), nil
}

func (s *ReferralService) load(ctx context.Context, userID string) (*models.ReferralRecord, error) {
	rec, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, ErrReferralNotFound
		}
		return nil, err
	}
	return rec, nil
}

func (s *ReferralService) publishByToken(ctx context.Context, token string) {
	rec, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		s.logger.Warn(ctx, "reload referral after update", "error", err)
		return
	}
	s.views.Publish(rec.View())
}
