package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Register(ctx context.Context) error
	Login(ctx context.Context) error
	Logout(ctx context.Context) error
	Status(ctx context.Context) error
	Grade(ctx context.Context, args []string) error
	Sync(ctx context.Context) error
	Referral(ctx context.Context, args []string) error
	Ask(ctx context.Context, args []string) error
}

// runREPL reads commands from scanner and dispatches them to a until EOF or
// "exit". Handler errors are printed and the loop continues.
//
//	Not logged in:
//	  - help                  show available commands
//	  - register              create an offline account
//	  - login                 sign in with pseudo and password
//	  - status                show connectivity
//	  - exit | quit           leave the program
//
//	Logged in:
//	  - status                access state, sync status, session mode
//	  - grade <level>         change grade level
//	  - sync                  push pending changes now
//	  - referral <sub> ...    activate | status | redeem <token> [id] | claim | advance | deactivate
//	  - ask <text>            ask the tutor
//	  - logout                sign out
//	  - exit | quit           leave the program
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("edu %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var err error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: status, grade, sync, referral, ask, logout, exit")
			} else {
				printlnFn("Available commands: register, login, status, exit")
			}

		case "register":
			err = a.Register(ctx)

		case "login":
			err = a.Login(ctx)

		case "logout":
			err = a.Logout(ctx)

		case "status":
			err = a.Status(ctx)

		case "grade":
			err = a.Grade(ctx, args)

		case "sync":
			err = a.Sync(ctx)

		case "referral", "ref":
			err = a.Referral(ctx, args)

		case "ask":
			err = a.Ask(ctx, args)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if err != nil {
			printlnFn("Error:", err.Error())
		}
	}
}
