package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/smartyedu/internal/client/models"
	"github.com/dmitrijs2005/smartyedu/internal/client/services"
	"github.com/dmitrijs2005/smartyedu/internal/client/tutor"
)

// Auth is the account surface the CLI drives.
type Auth interface {
	IsUserAllowedAccess(ctx context.Context) bool
	State(ctx context.Context) (models.AccessState, error)
	Watch() (<-chan models.AccessState, func())
	RegisterOffline(ctx context.Context, p services.RegisterParams) (*models.UserRecord, error)
	LoginOffline(ctx context.Context, pseudo string, password []byte) (*models.UserRecord, error)
	Logout(ctx context.Context) error
	CurrentUser(ctx context.Context) (*models.UserRecord, error)
	Session(ctx context.Context) (*models.SessionState, error)
	UpdateGradeLevel(ctx context.Context, gradeLevel string) error
}

// Syncer runs one sync pass on demand.
type Syncer interface {
	RunOnce(ctx context.Context) (services.RunReport, error)
}

// Referrals is the referral program surface the CLI drives.
type Referrals interface {
	ActivateBetaUser(ctx context.Context, userID string) (string, error)
	RedeemReferral(ctx context.Context, token, redemptionID string) error
	RequestPayment(ctx context.Context, userID string) error
	AdvanceLevel(ctx context.Context, userID string) (models.ReferralView, error)
	Deactivate(ctx context.Context, userID string) (models.ReferralView, error)
	Status(ctx context.Context, userID string) (models.ReferralView, error)
	Watch() (<-chan models.ReferralView, func())
}

// Connectivity reports whether the remote store is reachable.
type Connectivity interface {
	Online() bool
}

type App struct {
	auth      Auth
	syncer    Syncer
	referrals Referrals
	tutor     tutor.Responder
	conn      Connectivity
	reader    *bufio.Reader
	out       io.Writer
	history   []tutor.Message
}

func NewApp(a Auth, s Syncer, r Referrals, t tutor.Responder, c Connectivity) *App {
	return &App{
		auth:      a,
		syncer:    s,
		referrals: r,
		tutor:     t,
		conn:      c,
		reader:    bufio.NewReader(os.Stdin),
		out:       os.Stdout,
	}
}

// Run starts the access watcher and the REPL. It returns when the user exits
// or stdin is closed.
func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go a.watchAccess(ctx)
	go a.watchReferrals(ctx)

	fmt.Fprintln(a.out, "Welcome to smartyedu (type 'help' for commands)")
	runREPL(ctx, a, a.getStatus, bufio.NewScanner(a.reader))
}

func (a *App) isLoggedIn() bool {
	sess, err := a.auth.Session(context.Background())
	return err == nil && sess != nil
}

func (a *App) getStatus() string {
	ctx := context.Background()
	s := ""
	if u, err := a.auth.CurrentUser(ctx); err == nil {
		s = u.Pseudo + " "
	}
	if a.conn.Online() {
		s += "online"
	} else {
		s += "offline"
	}
	return fmt.Sprintf("(%s)", s)
}

// watchAccess prints access-state changes pushed by the auth flow.
func (a *App) watchAccess(ctx context.Context) {
	states, cancel := a.auth.Watch()
	defer cancel()

	var last models.AccessState
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			if !ok {
				return
			}
			if st != last {
				last = st
				fmt.Fprintf(a.out, "\n[access] %s\n", describeAccess(st))
			}
		}
	}
}

// watchReferrals prints changes to the signed-in user's referral record.
func (a *App) watchReferrals(ctx context.Context) {
	views, cancel := a.referrals.Watch()
	defer cancel()

	for {
		select {
		case <-ctx.Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			u, err := a.auth.CurrentUser(ctx)
			if err != nil || u.LocalID != v.UserID {
				continue
			}
			fmt.Fprintf(a.out, "\n[referral] %s: %s\n", v.DisplayText, v.StatusMessage)
		}
	}
}

func describeAccess(st models.AccessState) string {
	switch st {
	case models.AccessOnlineActive:
		return "account synced, full access"
	case models.AccessOfflineTrial:
		return "offline trial, connect to the internet to keep your account"
	case models.AccessOfflineExpired:
		return "offline trial expired, connect to the internet to continue"
	default:
		return "signed out"
	}
}
