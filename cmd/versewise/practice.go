package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ebarkley/versewise/internal/app"
	"github.com/ebarkley/versewise/internal/display"
	"github.com/ebarkley/versewise/internal/practice"
)

// practiceOpts collects the flag values for an interactive practice run.
type practiceOpts struct {
	textPath   string
	subjectID  string
	textID     string
	mode       practice.Mode
	phraseSize int
}

// runPractice drives one interactive session from the terminal: the masked
// text is printed each round, every input line is scored as a spoken
// attempt, and slash commands control hints and skipping. It returns when
// the text is finished, stdin closes, or ctx is cancelled.
func runPractice(ctx context.Context, mgr *app.Manager, out io.Writer, in io.Reader, opts practiceOpts) error {
	raw, err := os.ReadFile(opts.textPath)
	if err != nil {
		return fmt.Errorf("read practice text: %w", err)
	}

	s, err := mgr.StartSession(ctx, app.StartInput{
		SubjectID:  opts.subjectID,
		TextID:     opts.textID,
		Text:       string(raw),
		Mode:       opts.mode,
		PhraseSize: opts.phraseSize,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "practicing %q (%d words, %s mode)\n", opts.textID, len(s.Tokens), s.Mode)
	fmt.Fprintln(out, "speak by typing; /hint, /skip, /recall, /quit")

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := printMasked(ctx, mgr, out, s.ID); err != nil {
		return err
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_, _, err := mgr.FinishSession(context.WithoutCancel(ctx), s.ID)
			return err

		case <-ticker.C:
			action, err := mgr.Tick(ctx, s.ID)
			if err != nil {
				return err
			}
			switch action {
			case practice.ActionSuggestHint:
				fmt.Fprintln(out, "(stuck? try /hint)")
			case practice.ActionAutoHide:
				if err := printMasked(ctx, mgr, out, s.ID); err != nil {
					return err
				}
			case practice.ActionSuggestAdvance:
				fmt.Fprintln(out, "(still stuck — /skip moves on and banks the word for review)")
			}

		case line, ok := <-lines:
			if !ok {
				return finish(ctx, mgr, out, s.ID, opts)
			}
			done, err := handleLine(ctx, mgr, out, s.ID, line, opts.mode)
			if err != nil {
				return err
			}
			if done {
				return finish(ctx, mgr, out, s.ID, opts)
			}
		}
	}
}

// handleLine processes one input line, returning done when the session
// should be finished.
func handleLine(ctx context.Context, mgr *app.Manager, out io.Writer, sessionID, line string, mode practice.Mode) (bool, error) {
	line = strings.TrimSpace(line)
	switch {
	case line == "":
		return false, nil

	case line == "/quit":
		return true, nil

	case line == "/hint":
		kind, err := mgr.Hint(ctx, sessionID)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "hint (%s):\n", kind)
		return false, printMasked(ctx, mgr, out, sessionID)

	case line == "/skip":
		if mode != practice.ModeWord {
			fmt.Fprintln(out, "/skip only applies in word mode")
			return false, nil
		}
		if err := mgr.Skip(ctx, sessionID); err != nil {
			return false, err
		}
		return false, printMasked(ctx, mgr, out, sessionID)

	case line == "/recall":
		picked, err := mgr.RecallWords(ctx, sessionID, 0.3)
		if err != nil {
			return false, err
		}
		fmt.Fprintf(out, "focus words for the next round: %d picked\n", len(picked))
		return false, nil

	case strings.HasPrefix(line, "/"):
		fmt.Fprintf(out, "unknown command %q\n", line)
		return false, nil
	}

	res, err := mgr.Attempt(ctx, sessionID, line, 1.0)
	if err != nil {
		return false, err
	}
	printAttempt(out, res)
	if res.Done {
		return true, nil
	}
	return false, printMasked(ctx, mgr, out, sessionID)
}

// printAttempt reports the outcome of one scored attempt.
func printAttempt(out io.Writer, res app.AttemptResult) {
	switch {
	case res.Word != nil:
		if res.Word.Correct {
			fmt.Fprintln(out, "correct!")
		} else {
			fmt.Fprintf(out, "not quite (similarity %.0f%%)\n", res.Word.Similarity*100)
		}
	case res.Phrase != nil:
		fmt.Fprintf(out, "%s — accuracy %.1f%%\n", res.Phrase.Verdict, res.Phrase.Score.Accuracy)
		if len(res.Phrase.MissedWords) > 0 {
			fmt.Fprintf(out, "missed: %s\n", strings.Join(res.Phrase.MissedWords, ", "))
		}
	}
}

// printMasked renders and prints the masked text, marking the current word.
func printMasked(ctx context.Context, mgr *app.Manager, out io.Writer, sessionID string) error {
	spans, err := mgr.Render(ctx, sessionID)
	if err != nil {
		return err
	}
	var b strings.Builder
	for i, sp := range spans {
		if i > 0 {
			b.WriteByte(' ')
		}
		if sp.State == display.StateCurrent || sp.State == display.StateHinted {
			b.WriteByte('[')
			b.WriteString(sp.Masked)
			b.WriteByte(']')
		} else {
			b.WriteString(sp.Masked)
		}
	}
	fmt.Fprintln(out, b.String())
	return nil
}

// finish closes out the session and prints the summary, review advice, and
// overall standing.
func finish(ctx context.Context, mgr *app.Manager, out io.Writer, sessionID string, opts practiceOpts) error {
	sum, pats, err := mgr.FinishSession(ctx, sessionID)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "\nsession complete: %d/%d words correct (%.1f%%), %d attempts, %d hints\n",
		sum.CorrectWords, sum.WordsPracticed, sum.Accuracy, sum.TotalAttempts, sum.HintsUsed)
	if sum.WordsPerMinute > 0 {
		fmt.Fprintf(out, "pace: %.1f words/min over %s\n", sum.WordsPerMinute, sum.Duration.Round(time.Second))
	}
	if len(sum.ReviewWords) > 0 {
		fmt.Fprintf(out, "words to review: %s\n", strings.Join(sum.ReviewWords, ", "))
	}
	if len(pats) > 0 {
		fmt.Fprintf(out, "difficulty patterns detected: %d\n", len(pats))
	}

	recs, err := mgr.Recommendations(ctx, opts.subjectID, opts.textID, 3)
	if err == nil {
		for _, r := range recs {
			fmt.Fprintf(out, "tip: %s\n", r)
		}
	}

	due, err := mgr.DueWords(ctx, opts.subjectID, opts.textID, 5)
	if err == nil && len(due) > 0 {
		words := make([]string, len(due))
		for i, rec := range due {
			words[i] = rec.WordText
		}
		fmt.Fprintf(out, "due for review next time: %s\n", strings.Join(words, ", "))
	}
	return nil
}
