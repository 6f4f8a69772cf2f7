package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/google/uuid"
)

var errReferralUsage = errors.New("usage: referral activate | status | redeem <token> [redemption-id] | claim | advance | deactivate")

// Referral dispatches the referral sub-commands for the signed-in user.
func (a *App) Referral(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errReferralUsage
	}

	// redeem acts on someone else's token and needs no session
	if args[0] == "redeem" {
		return a.redeem(ctx, args[1:])
	}

	u, err := a.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	switch args[0] {
	case "activate":
		token, err := a.referrals.ActivateBetaUser(ctx, u.LocalID)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Referral program active. Share your token: %s\n", token)
	case "status":
		v, err := a.referrals.Status(ctx, u.LocalID)
		if err != nil {
			return err
		}
		a.printReferral(v)
	case "claim":
		if err := a.referrals.RequestPayment(ctx, u.LocalID); err != nil {
			return err
		}
		fmt.Fprintln(a.out, "Payment request sent, an operator will contact you")
	case "advance":
		v, err := a.referrals.AdvanceLevel(ctx, u.LocalID)
		if err != nil {
			return err
		}
		a.printReferral(v)
	case "deactivate":
		v, err := a.referrals.Deactivate(ctx, u.LocalID)
		if err != nil {
			return err
		}
		a.printReferral(v)
	default:
		return errReferralUsage
	}
	return nil
}

func (a *App) redeem(ctx context.Context, args []string) error {
	if len(args) == 0 || len(args) > 2 {
		return errReferralUsage
	}
	id := uuid.NewString()
	if len(args) == 2 {
		id = args[1]
	}
	if err := a.referrals.RedeemReferral(ctx, args[0], id); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Referral redeemed")
	return nil
}

func (a *App) printReferral(v models.ReferralView) {
	const width = 20
	filled := int(v.Progress * width)
	bar := strings.Repeat("#", filled) + strings.Repeat(".", width-filled)

	fmt.Fprintf(a.out, "[%s] %s\n", bar, v.DisplayText)
	fmt.Fprintln(a.out, v.StatusMessage)
	if v.GiftButtonVisible {
		fmt.Fprintln(a.out, "Type 'referral claim' to request your reward")
	}
}
