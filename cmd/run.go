package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jtandoc/speakquest/internal/catalog"
	"github.com/jtandoc/speakquest/internal/progress"
	"github.com/jtandoc/speakquest/internal/progression"
	"github.com/jtandoc/speakquest/internal/watchdog"
)

var runCmd = &cobra.Command{
	Use:   "run <lesson-id>",
	Short: "Run a lesson from the terminal",
	Long: `Run drives one lesson end to end: it loads the activity catalog,
resumes from saved progress (or the --at index), collects an answer or a
skip for each activity, and prints the star grade on completion. If a
session is active its time budget is enforced; expiry ends the run
immediately.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lessonID := args[0]

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		client := newClient(cfg)
		loader, err := catalog.NewLoader(client)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		cat, err := loader.Load(ctx, lessonID, cfg.Locale)
		if err != nil {
			// Fatal to starting a run; the learner can retry.
			return fmt.Errorf("%w (check your connection and try again)", err)
		}

		progressRepo := st.ProgressRepo()
		key := progress.Key{LessonID: lessonID, Locale: cfg.Locale}
		snap, err := progressRepo.Get(ctx, key)
		if err != nil {
			// Persistence is best-effort; start fresh on a bad snapshot.
			snap = nil
		}

		deepLink, _ := cmd.Flags().GetInt("at")
		eng, err := progression.New(progression.Config{
			Catalog:   cat,
			Submitter: client,
			Progress:  progressRepo,
			Snapshot:  snap,
			DeepLink:  deepLink,
		})
		if err != nil {
			return err
		}

		// The watchdog preempts the run when the session budget expires,
		// regardless of where the flow currently is.
		expired := make(chan struct{})
		wd := watchdog.New(st.SessionRepo(), client, func() {
			eng.Preempt(context.Background())
			close(expired)
			cancel()
		})
		wd.Start()
		defer wd.Stop()

		err = runLoop(ctx, cmd, eng, cat, lessonID, cfg.Locale, progressRepo, client)

		select {
		case <-expired:
			printSessionOver(cmd, cfg.Locale)
			return nil
		default:
		}
		return err
	},
}

func init() {
	runCmd.Flags().Int("at", progression.NoDeepLink, "Start at this activity index (deep link), overriding saved progress")
}

func runLoop(ctx context.Context, cmd *cobra.Command, eng *progression.Engine, cat *catalog.Catalog, lessonID, locale string, repo progress.Repo, completer progression.Completer) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())

	for {
		act, ok := eng.Current()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		state := eng.State()
		switch state.Phase {
		case progression.PhaseForward:
			fmt.Fprintf(out, "\n[%d/%d] %s (%s)\n", state.ForwardIndex+1, cat.Len(), act.ID, act.Kind)
		case progression.PhaseReview:
			fmt.Fprintf(out, "\nReviewing skipped activities (%d/%d): %s (%s)\n",
				state.ReviewIndex+1, len(state.ReviewQueue), act.ID, act.Kind)
		}
		if len(act.RenderPayload) > 0 {
			fmt.Fprintf(out, "  %s\n", act.RenderPayload)
		}
		fmt.Fprint(out, "answer (s = skip, q = save and exit): ")

		if !scanner.Scan() {
			// Input closed; save and leave like a voluntary exit.
			eng.Preempt(ctx)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		if ctx.Err() != nil {
			return ctx.Err()
		}

		var sub progression.Submission
		switch line {
		case "q":
			eng.Preempt(ctx)
			st := eng.State()
			fmt.Fprintf(out, "Progress saved. Resume with: speakquest run %s --at %d\n", lessonID, st.ForwardIndex)
			return nil
		case "s":
			sub = progression.Submission{Skipped: true}
		default:
			payload, err := json.Marshal(map[string]string{"answer": line})
			if err != nil {
				return err
			}
			sub = progression.Submission{Payload: payload}
		}

		step, err := eng.Submit(ctx, sub)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var attemptErr *progression.AttemptError
			if errors.As(err, &attemptErr) {
				// State is unchanged; the same activity comes up again.
				fmt.Fprintf(out, "Could not submit your answer (%v). Let's try that one again.\n", attemptErr.Err)
				continue
			}
			return err
		}

		printFeedback(out, step, locale)

		if step.Completed {
			fin := progression.NewFinalizer(completer, repo)
			res, err := fin.Finalize(ctx, lessonID, locale, eng.State().ScoreHistory)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "\nLesson complete! %s (mean score %.0f)\n", starBar(res.Stars), res.Mean)
			if res.NextLessonID != "" {
				fmt.Fprintf(out, "Up next: %s\n", res.NextLessonID)
			}
			return nil
		}
	}
	return nil
}

func printFeedback(out io.Writer, step progression.Step, locale string) {
	switch {
	case step.Skipped:
		fmt.Fprintln(out, "Skipped. We'll come back to this one.")
	case step.Passed:
		if locale == "tl" {
			fmt.Fprintln(out, "Magaling!")
		} else {
			fmt.Fprintln(out, "Great job!")
		}
	default:
		fmt.Fprintf(out, "Score: %.0f\n", step.Score)
	}
}

func printSessionOver(cmd *cobra.Command, locale string) {
	if locale == "tl" {
		fmt.Fprintln(cmd.OutOrStdout(), "\nTapos na ang oras ng iyong sesyon. Magkita tayo bukas!")
		return
	}
	fmt.Fprintln(cmd.OutOrStdout(), "\nYour session time is over. See you tomorrow!")
}

func starBar(stars int) string {
	return strings.Repeat("★", stars) + strings.Repeat("☆", 3-stars)
}
