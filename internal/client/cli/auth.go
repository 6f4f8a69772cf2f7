package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/smartyedu/internal/client/services"
	"github.com/dmitrijs2005/smartyedu/internal/common"
)

// getSimpleText, getTextOr and getPassword are indirections used to
// facilitate testing.
var (
	getSimpleText = GetSimpleText
	getTextOr     = GetTextOr
	getPassword   = GetPassword
)

var errPasswordMismatch = errors.New("passwords do not match")

// Register prompts for a new offline account and signs it in.
func (a *App) Register(ctx context.Context) error {
	pseudo, err := getSimpleText(a.reader, "Choose a pseudo", a.out)
	if err != nil {
		return err
	}
	name, err := getTextOr(a.reader, "Your name", pseudo, a.out)
	if err != nil {
		return err
	}
	grade, err := getTextOr(a.reader, "Grade level", "1", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	repeat, err := getPassword(a.out, "Repeat password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(repeat)

	if !bytes.Equal(password, repeat) {
		return errPasswordMismatch
	}

	u, err := a.auth.RegisterOffline(ctx, services.RegisterParams{
		Pseudo:     pseudo,
		Name:       name,
		Password:   password,
		GradeLevel: grade,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Welcome, %s! Your trial ends %s.\n", u.Name, u.TrialExpiresAt.Local().Format(time.DateTime))
	return nil
}

// Login verifies the credentials against the local identity store.
func (a *App) Login(ctx context.Context) error {
	pseudo, err := getSimpleText(a.reader, "Enter pseudo", a.out)
	if err != nil {
		return err
	}

	password, err := getPassword(a.out, "Enter password")
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	u, err := a.auth.LoginOffline(ctx, pseudo, password)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Signed in as %s\n", u.Pseudo)
	return nil
}

// Logout clears the session.
func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		return err
	}
	fmt.Fprintln(a.out, "Signed out")
	return nil
}

// Status prints connectivity, access state and the signed-in account.
func (a *App) Status(ctx context.Context) error {
	online := "offline"
	if a.conn.Online() {
		online = "online"
	}
	fmt.Fprintf(a.out, "connectivity: %s\n", online)

	st, err := a.auth.State(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "access:       %s (%s)\n", st, describeAccess(st))

	sess, err := a.auth.Session(ctx)
	if err != nil || sess == nil {
		return err
	}
	u, err := a.auth.CurrentUser(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "account:      %s (%s), grade %s\n", u.Pseudo, u.Name, u.GradeLevel)
	fmt.Fprintf(a.out, "session:      %s\n", sess.Mode)
	fmt.Fprintf(a.out, "sync:         %s, role %s\n", u.SyncStatus, u.Role)
	if u.TrialExpiresAt != nil {
		fmt.Fprintf(a.out, "trial ends:   %s\n", u.TrialExpiresAt.Local().Format(time.DateTime))
	}
	return nil
}

// Grade changes the grade level of the signed-in user.
func (a *App) Grade(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: grade <level>")
	}
	if err := a.auth.UpdateGradeLevel(ctx, args[0]); err != nil {
		return err
	}
	fmt.Fprintf(a.out, "Grade level set to %s\n", args[0])
	return nil
}

// Sync pushes pending local changes now.
func (a *App) Sync(ctx context.Context) error {
	report, err := a.syncer.RunOnce(ctx)
	if err != nil {
		return err
	}
	switch {
	case report.Offline:
		fmt.Fprintln(a.out, "Offline, sync postponed")
	case report.Outcome == services.OutcomeSuccess:
		fmt.Fprintf(a.out, "Sync complete: %d of %d synced\n", report.Synced, report.Pending)
	default:
		fmt.Fprintf(a.out, "Sync incomplete: %d of %d synced, %d failed\n", report.Synced, report.Pending, report.Failed())
	}
	return nil
}
