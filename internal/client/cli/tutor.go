package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/smartyedu/internal/client/tutor"
)

var errAccessDenied = errors.New("access denied: sign in, or connect to the internet if your trial expired")

// maxHistory bounds the conversation kept for the tutor.
const maxHistory = 20

// Ask sends a message to the tutor and prints the reply.
func (a *App) Ask(ctx context.Context, args []string) error {
	if !a.auth.IsUserAllowedAccess(ctx) {
		return errAccessDenied
	}
	msg := strings.Join(args, " ")

	reply, err := a.tutor.Respond(ctx, a.history, msg)
	if err != nil {
		return err
	}

	a.history = append(a.history, tutor.Message{FromUser: true, Text: msg}, tutor.Message{Text: reply})
	if len(a.history) > maxHistory {
		a.history = a.history[len(a.history)-maxHistory:]
	}

	fmt.Fprintf(a.out, "tutor: %s\n", reply)
	return nil
}
