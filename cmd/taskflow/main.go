package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/model"
)

// Version is set at build time.
var Version = "dev"

func main() {
	// A missing .env file is the normal case.
	_ = godotenv.Load()

	var configPath string

	rootCmd := &cobra.Command{
		Use:     "taskflow",
		Short:   "TaskFlow in the terminal: tasks, timers and notifications",
		Version: Version,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUI(configPath)
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", model.DefaultConfigPath(), "config file")

	rootCmd.AddCommand(loginCmd())
	rootCmd.AddCommand(logoutCmd())
	rootCmd.AddCommand(statusCmd(&configPath))

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
