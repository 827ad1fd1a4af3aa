package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isSignedIn() bool
	Login(ctx context.Context) error
	Wallet(ctx context.Context, address string) error
	Callback(ctx context.Context, rawURL string) error
	ShowStatus(ctx context.Context) error
	Retry(ctx context.Context) error
	Logout(ctx context.Context) error
}

// runREPL reads commands from reader until EOF or "exit".
//
// Commands:
//
//	login              sign in with an email and identity token
//	wallet <address>   sign in with an external wallet address
//	callback <url>     hand over a provider redirect URL
//	status             show the reconciliation snapshot
//	retry              run the pipeline again after a failure
//	logout             end the episode and sign the wallet out
//	help               list commands
//	exit | quit        leave the program
//
// The reader is shared with the interactive prompts raised during a run, so
// commands execute synchronously. Handler errors are printed and the loop
// continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("nova %s> ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || strings.TrimSpace(line) == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isSignedIn() {
				printlnFn("Available commands: status, retry, logout, callback <url>, exit")
			} else {
				printlnFn("Available commands: login, wallet <address>, callback <url>, status, retry, exit")
			}

		case "login":
			cmdErr = a.Login(ctx)

		case "wallet":
			if len(args) != 1 {
				printlnFn("Usage: wallet <address>")
				continue
			}
			cmdErr = a.Wallet(ctx, args[0])

		case "callback":
			if len(args) != 1 {
				printlnFn("Usage: callback <url>")
				continue
			}
			cmdErr = a.Callback(ctx, args[0])

		case "status":
			cmdErr = a.ShowStatus(ctx)

		case "retry":
			cmdErr = a.Retry(ctx)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("Error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
