package decision

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/fatih/color"
)

// Decider is the operator-facing callback the dispatcher hands each
// workflow to, one at a time. It blocks until the decision is terminal.
type Decider func(ctx context.Context, wf *Workflow) error

// ConsoleDecider drives a workflow from a line-oriented terminal session:
//
//	a            approve
//	c            cancel
//	r            recapture
//	p <plate>    edit plate text (re-resolves identity)
//	o <name>     set owner name
//	f <flat>     set flat number
//	n <phone>    set phone number
//
// Presentation-technology-free by design; any richer UI replaces this
// function, not the workflow.
func ConsoleDecider(in io.Reader, out io.Writer) Decider {
	scanner := bufio.NewScanner(in)

	return func(ctx context.Context, wf *Workflow) error {
		printStatus(out, wf)

		for {
			select {
			case <-ctx.Done():
				wf.Cancel()
				return ctx.Err()
			default:
			}

			color.New(color.FgHiWhite).Fprint(out, "> ")
			if !scanner.Scan() {
				wf.Cancel()
				return scanner.Err()
			}

			cmd, arg := splitCommand(scanner.Text())
			switch cmd {
			case "a":
				if err := wf.Approve(ctx); err != nil {
					color.New(color.FgHiRed).Fprintf(out, "approval failed (retryable): %v\n", err)
					continue
				}
				color.New(color.FgHiGreen).Fprintf(out, "entry approved: %s\n", wf.PlateText())
				return nil
			case "c":
				wf.Cancel()
				color.New(color.FgHiYellow).Fprintln(out, "entry cancelled")
				return nil
			case "r":
				if err := wf.Recapture(ctx); err != nil {
					if errors.Is(err, ErrCaptureUnavailable) {
						color.New(color.FgHiYellow).Fprintln(out, "capture unavailable")
						continue
					}
					return err
				}
				printStatus(out, wf)
			case "p":
				if err := wf.SetPlate(ctx, arg); err != nil {
					color.New(color.FgHiRed).Fprintf(out, "lookup failed: %v\n", err)
					continue
				}
				printStatus(out, wf)
			case "o":
				wf.OwnerName = arg
			case "f":
				wf.FlatNumber = arg
			case "n":
				wf.PhoneNumber = arg
			default:
				color.New(color.FgHiWhite).Fprintln(out, "commands: a approve, c cancel, r recapture, p <plate>, o <owner>, f <flat>, n <phone>")
			}
		}
	}
}

func printStatus(out io.Writer, wf *Workflow) {
	switch wf.State() {
	case StateKnown:
		color.New(color.FgHiGreen).Fprintf(out, "[%s] RESIDENT FOUND: %s (%s, flat %s)\n",
			wf.GateName(), wf.PlateText(), wf.OwnerName, wf.FlatNumber)
	case StateUnknown:
		color.New(color.FgHiYellow).Fprintf(out, "[%s] UNKNOWN / VISITOR: %s\n",
			wf.GateName(), wf.PlateText())
	default:
		color.New(color.FgHiWhite).Fprintf(out, "[%s] enter details\n", wf.GateName())
	}
}

func splitCommand(line string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(line), " ", 2)
	cmd := strings.ToLower(parts[0])
	if len(parts) == 1 {
		return cmd, ""
	}
	return cmd, strings.TrimSpace(parts[1])
}
