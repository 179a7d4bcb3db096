package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/uipilot"
)

// consoleSink renders run progress to the terminal and handles sensitive
// operation confirmations over stdin.
type consoleSink struct {
	out      io.Writer
	thinking bool
}

var _ uipilot.ProgressSink = (*consoleSink)(nil)

func newConsoleSink(out io.Writer) *consoleSink {
	return &consoleSink{out: out}
}

func (s *consoleSink) OnPlanReady(plan string, completed string) {
	if completed != "" {
		fmt.Fprintf(s.out, "done so far: %s\n", completed)
	}
	fmt.Fprintf(s.out, "plan: %s\n", plan)
}

func (s *consoleSink) OnStepStart(step int) {
	fmt.Fprintf(s.out, "\n--- step %d ---\n", step)
}

func (s *consoleSink) OnThinkChunk(chunk string) {
	if !s.thinking {
		fmt.Fprint(s.out, "thinking: ")
		s.thinking = true
	}
	fmt.Fprint(s.out, chunk)
}

func (s *consoleSink) OnThinkComplete(thought string) {
	if s.thinking {
		fmt.Fprintln(s.out)
		s.thinking = false
		return
	}
	if thought != "" {
		fmt.Fprintf(s.out, "thinking: %s\n", thought)
	}
}

func (s *consoleSink) OnActionDetected(action uipilot.Action, description string) {
	if s.thinking {
		fmt.Fprintln(s.out)
		s.thinking = false
	}
	fmt.Fprintf(s.out, "action: %s\n", action.String())
	if description != "" {
		fmt.Fprintf(s.out, "  %s\n", description)
	}
}

func (s *consoleSink) OnStepComplete(step int, outcome uipilot.StepOutcome, errDesc string) {
	fmt.Fprintf(s.out, "outcome: %s", outcome)
	if errDesc != "" {
		fmt.Fprintf(s.out, " (%s)", errDesc)
	}
	fmt.Fprintln(s.out)
}

func (s *consoleSink) OnStreamMetrics(metrics uipilot.StreamMetrics) {
	fmt.Fprintf(s.out, "  first token %s, total %s\n",
		metrics.TimeToFirstToken.Round(10e6), metrics.Total.Round(10e6))
}

func (s *consoleSink) OnVerification(passed bool, detail string) {
	if passed {
		fmt.Fprintf(s.out, "verified: %s\n", detail)
	} else {
		fmt.Fprintf(s.out, "verification failed: %s\n", detail)
	}
}

// ConfirmSensitive prompts on the terminal. An unreadable answer counts as
// a decline.
func (s *consoleSink) ConfirmSensitive(ctx context.Context, message string) (bool, error) {
	fmt.Fprintf(s.out, "\n!! sensitive operation: %s\n", message)
	fmt.Fprint(s.out, "proceed? [y/N]: ")

	answer, err := readLine(ctx)
	if err != nil {
		return false, err
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes", nil
}

// RequestTakeOver waits for the user to finish a manual step.
func (s *consoleSink) RequestTakeOver(ctx context.Context, message string) error {
	fmt.Fprintf(s.out, "\n!! manual step needed: %s\n", message)
	fmt.Fprint(s.out, "press enter when done: ")
	_, err := readLine(ctx)
	return err
}

// readLine reads one line from stdin, honoring context cancellation.
func readLine(ctx context.Context) (string, error) {
	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		reader := bufio.NewReader(os.Stdin)
		line, err := reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case r := <-ch:
		if r.err != nil && r.line == "" {
			return "", r.err
		}
		return r.line, nil
	}
}
