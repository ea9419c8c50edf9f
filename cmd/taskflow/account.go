package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/taskflow/internal/auth"
	"github.com/nhle/taskflow/internal/credential"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/store"
)

func loginCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store an API token in the system keyring",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				fmt.Fprint(cmd.OutOrStdout(), "API token: ")
				line, err := bufio.NewReader(os.Stdin).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token: %w", err)
				}
				token = strings.TrimSpace(line)
			}

			identity, err := auth.FromToken(token)
			if err != nil {
				return fmt.Errorf("invalid token: %w", err)
			}
			if identity.Expired(time.Now()) {
				return errors.New("token has expired")
			}
			if err := credential.Set(credential.TokenKey, token); err != nil {
				return err
			}

			who := identity.UserID
			if identity.Name != "" {
				who = identity.Name
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s.\n", who)
			return nil
		},
	}
	cmd.Flags().StringVarP(&token, "token", "t", "", "API token (prompted when omitted)")

	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored API token",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := credential.Delete(credential.TokenKey); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the signed-in user and the locally saved timer",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			cfg, err := model.LoadConfig(*configPath)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "API:      %s\n", cfg.API.BaseURL)

			if token, err := credential.Token(); err != nil {
				fmt.Fprintln(out, "User:     not logged in")
			} else if identity, err := auth.FromToken(token); err != nil {
				fmt.Fprintf(out, "User:     unreadable token (%v)\n", err)
			} else {
				fmt.Fprintf(out, "User:     %s\n", identity.UserID)
			}

			slots, err := store.NewSQLiteStore(cfg.DatabasePath())
			if err != nil {
				return err
			}
			defer slots.Close()

			snap := store.NewTimerStore(slots).Load(context.Background())
			if snap == nil || !snap.IsRunning {
				fmt.Fprintln(out, "Timer:    idle")
				return nil
			}
			elapsed := model.ElapsedSince(snap.ElapsedSeconds, snap.StartTime(), time.Now())
			fmt.Fprintf(out, "Timer:    %s on %q\n", model.FormatElapsed(elapsed), snap.ActiveTask.Title)
			return nil
		},
	}
}
