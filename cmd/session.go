package cmd

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jtandoc/speakquest/internal/watchdog"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage the session time budget",
}

var sessionStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start a timed session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		repo := st.SessionRepo()

		if active, err := repo.Active(ctx); err == nil && active != nil {
			return fmt.Errorf("a session is already active (ends %s)", msTime(active.EndAt).Format(time.Kitchen))
		}

		minutes, _ := cmd.Flags().GetInt("minutes")
		now := time.Now()
		sess := &watchdog.Session{
			ID:             uuid.New().String(),
			MinutesAllowed: minutes,
			Status:         watchdog.StatusActive,
			StartedAt:      now.UnixMilli(),
			EndAt:          now.Add(time.Duration(minutes) * time.Minute).UnixMilli(),
		}
		if err := repo.Create(ctx, sess); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Session %s started: %d minutes, ends %s\n",
			sess.ID, minutes, msTime(sess.EndAt).Format(time.Kitchen))
		return nil
	},
}

var sessionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		sess, err := st.SessionRepo().Active(cmd.Context())
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
			return nil
		}

		remaining := time.Until(msTime(sess.EndAt)).Round(time.Second)
		if remaining < 0 {
			remaining = 0
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session %s: %s remaining of %d minutes\n",
			sess.ID, remaining, sess.MinutesAllowed)
		return nil
	},
}

var sessionEndCmd = &cobra.Command{
	Use:   "end",
	Short: "End the active session (sign-out)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		st, err := openStore(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		ctx := cmd.Context()
		repo := st.SessionRepo()
		sess, err := repo.Active(ctx)
		if err != nil {
			return err
		}
		if sess == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No active session.")
			return nil
		}

		if _, err := repo.MarkEnded(ctx, sess.ID); err != nil {
			return err
		}
		// Server notification is best-effort; local teardown wins.
		_ = newClient(cfg).EndSession(ctx, sess.ID)
		if err := repo.Delete(ctx, sess.ID); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Session %s ended.\n", sess.ID)
		return nil
	},
}

func msTime(ms int64) time.Time {
	return time.UnixMilli(ms)
}

func init() {
	sessionStartCmd.Flags().Int("minutes", 20, "Session length in minutes")

	sessionCmd.AddCommand(sessionStartCmd)
	sessionCmd.AddCommand(sessionStatusCmd)
	sessionCmd.AddCommand(sessionEndCmd)
}
