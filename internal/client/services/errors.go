package services

import "errors"

// Domain failures returned to callers. Match them with errors.Is.
var (
	ErrNoSession          = errors.New("no active session")
	ErrInvalidCredentials = errors.New("invalid pseudo or password")
	ErrPseudoTaken        = errors.New("pseudo already taken")

	ErrReferralAlreadyActive      = errors.New("referral program already active for this user")
	ErrQuotaReachedOrInvalidToken = errors.New("quota reached or invalid token")
	ErrConnectivityRequired       = errors.New("connectivity required")
	ErrReferralNotFound           = errors.New("referral record not found")
	ErrReferralInactive           = errors.New("referral program is not active")
	ErrQuotaNotReached            = errors.New("quota not reached")
	ErrPaymentAlreadyRequested    = errors.New("payment already requested for this level")
	ErrLevelNotComplete           = errors.New("current level is not complete yet")
)
