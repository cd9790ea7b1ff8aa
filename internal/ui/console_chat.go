package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wwwzy/EDAgent/internal/agent"
)

type ConsoleChatUI struct {
	In  io.Reader
	Out io.Writer
}

func (u *ConsoleChatUI) Run(ctx context.Context, backend ChatBackend, opts ChatOptions) error {
	in := u.In
	if in == nil {
		return fmt.Errorf("console ui: In is nil")
	}
	out := u.Out
	if out == nil {
		return fmt.Errorf("console ui: Out is nil")
	}

	reader := bufio.NewReader(in)
	var transcript []agent.Exchange

	fmt.Fprintln(out, "EDAgent chat. Type /help for commands, exit/quit to leave.")
	fmt.Fprintln(out, backend.DatasetStatus())
	if backend.Dataset() != nil && !opts.SkipAutonomous {
		fmt.Fprintf(out, "Agent: %s\n\n", RunAutonomous(ctx, backend))
	}

	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(out, "Bye.")
			return nil
		default:
		}

		fmt.Fprint(out, "You: ")
		line, err := reader.ReadString('\n')
		if err != nil && (err != io.EOF || strings.TrimSpace(line) == "") {
			if err == io.EOF {
				fmt.Fprintln(out)
				return nil
			}
			return fmt.Errorf("read input: %w", err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if res := HandleCommand(ctx, backend, line, opts); res.Handled {
			if res.Exit {
				fmt.Fprintln(out, "Bye.")
				return nil
			}
			fmt.Fprintln(out, res.Text)
			fmt.Fprintln(out)
			continue
		}

		transcript, _ = backend.QueryTranscript(ctx, line, transcript)
		reply := "(no answer)"
		if n := len(transcript); n > 0 && strings.TrimSpace(transcript[n-1].Reply) != "" {
			reply = strings.TrimSpace(transcript[n-1].Reply)
		}
		fmt.Fprintf(out, "Agent: %s\n\n", reply)
	}
}
