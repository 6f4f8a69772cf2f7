// Package handoff builds and opens the operator chat link used to claim a
// referral reward. Opening is fire-and-forget: delivery is never verified.
package handoff

import (
	"context"
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/logging"
)

// PaymentRequest is the content of the prefilled operator message.
type PaymentRequest struct {
	UserID    string
	Level     int
	Threshold int
	At        time.Time
}

// NewPaymentRequest derives the request for a referral record at time at.
func NewPaymentRequest(rec *models.ReferralRecord, at time.Time) PaymentRequest {
	return PaymentRequest{
		UserID:    rec.UserID,
		Level:     rec.Level,
		Threshold: models.QuotaForLevel(rec.Level),
		At:        at.UTC(),
	}
}

// Text renders the prefilled message.
func (r PaymentRequest) Text() string {
	return fmt.Sprintf("Hello! I reached the referral goal and would like to claim my reward.\n"+
		"User ID: %s\nLevel: %d\nInvites: %d\nTime: %s",
		r.UserID, r.Level, r.Threshold, r.At.Format(time.RFC3339))
}

// WhatsAppLink returns the wa.me deep link for phone with the message prefilled.
func WhatsAppLink(phone string, r PaymentRequest) string {
	digits := strings.Map(func(c rune) rune {
		if c >= '0' && c <= '9' {
			return c
		}
		return -1
	}, phone)
	return "https://wa.me/" + digits + "?text=" + url.QueryEscape(r.Text())
}

// Opener hands a link to something outside the process.
type Opener interface {
	Open(ctx context.Context, link string) error
}

// Opener modes accepted by NewOpener.
const (
	ModeBrowser = "browser"
	ModeLog     = "log"
)

// NewOpener returns the opener for mode. ModeLog suits headless hosts.
func NewOpener(mode string, l logging.Logger) (Opener, error) {
	switch mode {
	case ModeBrowser, "":
		return NewBrowserOpener(), nil
	case ModeLog:
		return LogOpener{Logger: l}, nil
	default:
		return nil, fmt.Errorf("unknown hand-off mode %q", mode)
	}
}

// BrowserOpener starts the platform URL handler without waiting for it.
type BrowserOpener struct {
	command func(name string, args ...string) *exec.Cmd
}

func NewBrowserOpener() *BrowserOpener {
	return &BrowserOpener{command: exec.Command}
}

func (o *BrowserOpener) Open(_ context.Context, link string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = o.command("open", link)
	case "windows":
		cmd = o.command("rundll32", "url.dll,FileProtocolHandler", link)
	default:
		cmd = o.command("xdg-open", link)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("open link: %w", err)
	}
	go func() { _ = cmd.Wait() }()
	return nil
}

// LogOpener only logs the link.
type LogOpener struct {
	Logger logging.Logger
}

func (o LogOpener) Open(ctx context.Context, link string) error {
	o.Logger.Info(ctx, "operator hand-off", "link", link)
	return nil
}
