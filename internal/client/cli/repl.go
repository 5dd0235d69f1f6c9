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
	Signup(ctx context.Context) error
	Login(ctx context.Context) error
	Resume(ctx context.Context) error
	Refresh(ctx context.Context) error
	Me(ctx context.Context) error
	Logout(ctx context.Context) error
	Ping(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the storefront CLI.
//
// It reads a line from reader, parses the first token as the command, and
// dispatches to methods on 'a'. The loop exits on EOF, when ctx is done, or
// when the user types "exit" or "quit". Command errors are printed and the
// loop continues.
//
//	Not logged in:  help, signup, login, resume, ping, exit | quit
//	Logged in:      help, me, refresh, logout, ping, exit | quit
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		if ctx.Err() != nil {
			return
		}

		printlnFn(fmt.Sprintf("sf%s> ", prefix(statusFn())))
		line, err := readLine(reader)
		if err != nil {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn("Available commands: me, refresh, logout, ping, exit")
			} else {
				printlnFn("Available commands: signup, login, resume, ping, exit")
			}

		case "signup":
			cmdErr = a.Signup(ctx)

		case "login":
			cmdErr = a.Login(ctx)

		case "resume":
			cmdErr = a.Resume(ctx)

		case "refresh":
			cmdErr = a.Refresh(ctx)

		case "me":
			cmdErr = a.Me(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "ping":
			cmdErr = a.Ping(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", describeError(cmdErr))
		}
	}
}

func prefix(status string) string {
	if status == "" {
		return ""
	}
	return " " + status
}
