package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Root runs the command loop until "exit" or EOF on in.
func (a *App) Root(ctx context.Context, in io.Reader) {
	fmt.Fprintln(a.out, "Ledger CLI (type 'help' for commands)")
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprintf(a.out, "ledger %s> ", a.getStatus())
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		switch cmd {
		case "help":
			a.help()
		case "connect":
			a.report(a.Connect(ctx))
		case "use-default":
			a.report(a.UseDefault(ctx))
		case "disconnect":
			a.report(a.Disconnect(ctx))
		case "status":
			a.report(a.Status(ctx))
		case "register":
			a.report(a.Register(ctx))
		case "login":
			a.report(a.Login(ctx))
		case "logout":
			a.report(a.Logout(ctx))
		case "whoami":
			a.report(a.Whoami(ctx))
		case "write":
			a.report(a.Write(ctx))
		case "posts":
			a.report(a.ListPosts(ctx))
		case "publish":
			a.report(a.Publish(ctx, args))
		case "rm":
			a.report(a.Remove(ctx, args))
		case "drafts":
			a.report(a.Drafts(ctx, args))
		case "exit", "quit":
			fmt.Fprintln(a.out, "Bye!")
			return
		default:
			fmt.Fprintln(a.out, "Unknown command:", cmd)
		}
	}
}

// report prints a command's failure; handlers that handled their own outcome
// return nil.
func (a *App) report(err error) {
	if err != nil {
		fmt.Fprintln(a.out, "Error:", err.Error())
	}
}

func (a *App) help() {
	if a.isLoggedIn() {
		fmt.Fprintln(a.out, "Available commands: write, posts, publish <id>, rm <id>, drafts, whoami, logout, status, connect, use-default, disconnect, exit")
	} else {
		fmt.Fprintln(a.out, "Available commands: register, login, connect, use-default, disconnect, status, drafts, exit")
	}
}
