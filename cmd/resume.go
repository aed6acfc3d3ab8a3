package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Show where the learner left off",
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

		last, err := st.ProgressRepo().Last(cmd.Context())
		if err != nil {
			return err
		}
		if last == nil {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved lesson.")
			return nil
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Last lesson: %s (locale %s), activity %d\n",
			last.LessonID, last.Locale, last.Index+1)
		fmt.Fprintf(cmd.OutOrStdout(), "Continue with: speakquest run %s --at %d\n",
			last.LessonID, last.Index)
		return nil
	},
}
