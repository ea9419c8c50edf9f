package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/app"
	"github.com/nhle/taskflow/internal/auth"
	"github.com/nhle/taskflow/internal/credential"
	"github.com/nhle/taskflow/internal/logging"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/session"
	"github.com/nhle/taskflow/internal/store"
)

// openLogger opens the configured log file. The TUI owns the terminal, so
// nothing is logged to stderr while it runs.
func openLogger(cfg *model.AppConfig) (*log.Logger, func(), error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, nil, fmt.Errorf("creating data directory %s: %w", cfg.DataDir, err)
	}
	f, err := logging.OpenFile(cfg.LogPath())
	if err != nil {
		return nil, nil, err
	}
	return logging.New(f, "taskflow", cfg.Log.Level), func() { f.Close() }, nil
}

// newClient builds the API client from cfg.
func newClient(cfg *model.AppConfig, token string) *api.Client {
	return api.NewClient(cfg.API.BaseURL, token,
		api.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second}),
		api.WithRateLimit(cfg.API.RequestsPerSecond, max(1, int(cfg.API.RequestsPerSecond))),
		api.WithMaxRetries(cfg.API.MaxRetries),
	)
}

func runUI(configPath string) error {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	token, err := credential.Token()
	if err != nil {
		return err
	}
	identity, err := auth.FromToken(token)
	if err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	if identity.Expired(time.Now()) {
		return fmt.Errorf("token expired at %s: run `taskflow login` again", identity.ExpiresAt.Format(time.RFC3339))
	}

	slots, err := store.NewSQLiteStore(cfg.DatabasePath())
	if err != nil {
		return err
	}
	defer slots.Close()

	sess, err := session.Start(session.Deps{
		Config:   cfg,
		Slots:    slots,
		API:      newClient(cfg, token),
		Identity: identity,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer sess.Teardown()

	p := tea.NewProgram(app.New(sess, cfg, configPath, logger), tea.WithAltScreen())
	final, err := p.Run()
	if err != nil {
		return fmt.Errorf("running UI: %w", err)
	}

	if m, ok := final.(app.Model); ok && m.LoggedOut {
		if m.LogoutErr != nil {
			return m.LogoutErr
		}
		fmt.Println("Logged out.")
	}
	return nil
}
