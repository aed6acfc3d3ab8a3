package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/jtandoc/speakquest/internal/api"
	"github.com/jtandoc/speakquest/internal/config"
	"github.com/jtandoc/speakquest/internal/store"
)

var rootCmd = &cobra.Command{
	Use:          "speakquest",
	Short:        "Lesson runtime for young learners",
	Long:         "Speakquest is the student-side lesson runtime for an educational platform supporting children with speech and emotional development needs.",
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (overrides the default location)")
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides SPEAKQUEST_DB env var)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(resumeCmd)
	rootCmd.AddCommand(resetCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig resolves the effective config for a command invocation.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.DBPath = p
	}
	return cfg, nil
}

// openStore opens the SQLite store at the configured path, falling back
// to the default XDG location.
func openStore(cfg config.Config) (*store.Store, error) {
	path := cfg.DBPath
	if path == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		path = p
	} else if err := store.EnsureDir(path); err != nil {
		return nil, err
	}
	return store.Open(path)
}

// newClient builds the API client from config.
func newClient(cfg config.Config) *api.Client {
	return api.NewClient(api.Config{
		BaseURL: cfg.APIBaseURL,
		Token:   cfg.Token,
		Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
	})
}
