package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jtandoc/speakquest/internal/progress"
)

var resetCmd = &cobra.Command{
	Use:   "reset <lesson-id>",
	Short: "Discard saved progress for a lesson",
	Args:  cobra.ExactArgs(1),
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

		key := progress.Key{LessonID: args[0], Locale: cfg.Locale}
		if err := st.ProgressRepo().Delete(cmd.Context(), key); err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Progress for lesson %s (locale %s) cleared.\n", args[0], cfg.Locale)
		return nil
	},
}
