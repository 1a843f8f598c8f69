package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"

	"github.com/tailored-agentic-units/mealplanner/kernel"
	"github.com/tailored-agentic-units/mealplanner/phase"
	"github.com/tailored-agentic-units/mealplanner/server"
)

// conversation runs turns either in process or against a server.
type conversation interface {
	NewSession(ctx context.Context) (string, error)
	Turn(ctx context.Context, sessionID string, in kernel.Input) (*server.Reply, error)
}

type localConversation struct {
	k *kernel.Kernel
}

func (l localConversation) NewSession(ctx context.Context) (string, error) {
	return l.k.NewSession(ctx)
}

func (l localConversation) Turn(ctx context.Context, sessionID string, in kernel.Input) (*server.Reply, error) {
	result, err := l.k.Turn(ctx, sessionID, in)
	if result == nil {
		return nil, err
	}
	return server.ReplyOf(result), err
}

const chatHelp = `Commands:
  /restart   abandon the current recipe and start over
  /session   show the session id
  /quit      leave (Ctrl-D also works)`

func (c *ChatCmd) Run(g *Globals) error {
	rt, err := g.load()
	if err != nil {
		return err
	}
	defer rt.closer.Close()

	var conv conversation
	if c.Remote != "" {
		conv = server.NewClient(http.DefaultClient, c.Remote)
	} else {
		k, err := rt.kernel()
		if err != nil {
			return err
		}
		defer k.Close()
		conv = localConversation{k: k}
	}

	ctx := context.Background()
	sessionID := c.Session
	if sessionID == "" {
		if sessionID, err = conv.NewSession(ctx); err != nil {
			return fmt.Errorf("failed to start session: %w", err)
		}
	}

	history := c.History
	if history == "" {
		if home, err := os.UserHomeDir(); err == nil {
			history = filepath.Join(home, ".mealplanner_history")
		}
	}

	st := newStyles()
	active := string(phase.Inspiration)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          st.phaseBadge(active) + " > ",
		HistoryFile:     history,
		InterruptPrompt: "^C",
		EOFPrompt:       "/quit",
	})
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Fprintln(rl.Stdout(), st.faint.Render("session "+sessionID+"  (/help for commands)"))

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		in := kernel.Input{Message: line}
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/help":
			fmt.Fprintln(rl.Stdout(), chatHelp)
			continue
		case "/session":
			fmt.Fprintln(rl.Stdout(), sessionID)
			continue
		case "/restart":
			in = kernel.Input{Message: "Let's start over with a different dish.", Restart: true}
		}

		reply, err := conv.Turn(ctx, sessionID, in)
		if reply != nil {
			active = reply.Phase
			rl.SetPrompt(st.phaseBadge(active) + " > ")
			printReply(rl.Stdout(), st, reply, g.Verbose)
		}
		if err != nil {
			fmt.Fprintln(rl.Stderr(), st.err.Render("error:")+" "+err.Error())
		}
	}
}

func printReply(w io.Writer, st styles, reply *server.Reply, verbose bool) {
	if h := reply.Handoff; h != nil && h.From != h.To {
		note := fmt.Sprintf("%s -> %s", h.From, h.To)
		if h.Reason != "" {
			note += ": " + h.Reason
		}
		fmt.Fprintln(w, st.handoff.Render(note))
	}

	if verbose {
		for _, tc := range reply.ToolCalls {
			style := st.tool
			if tc.IsError {
				style = st.toolFail
			}
			fmt.Fprintln(w, style.Render(fmt.Sprintf("  %s [%s] %s", tc.Name, tc.Status, tc.Result)))
		}
	}

	if reply.Response != "" {
		fmt.Fprintln(w, st.phaseBadge(reply.Phase)+" "+st.reply.Render(reply.Response))
	}
}
