// Package session composes the per-user services of the client. A Session
// is created when a user signs in and torn down on logout or exit; nothing
// in it is global.
package session

import (
	"context"
	"fmt"
	"log"
	"net/http"
	gosync "sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/nhle/taskflow/internal/api"
	"github.com/nhle/taskflow/internal/auth"
	"github.com/nhle/taskflow/internal/credential"
	"github.com/nhle/taskflow/internal/events"
	"github.com/nhle/taskflow/internal/inbox"
	"github.com/nhle/taskflow/internal/model"
	"github.com/nhle/taskflow/internal/push"
	"github.com/nhle/taskflow/internal/store"
	"github.com/nhle/taskflow/internal/sync"
	"github.com/nhle/taskflow/internal/timer"
)

// Deps are the long-lived resources a session is built from.
type Deps struct {
	Config   *model.AppConfig
	Slots    store.Store
	API      *api.Client
	Identity auth.Identity
	Logger   *log.Logger

	// TimerOptions and PushOptions are passed through to the services.
	TimerOptions []timer.Option
	PushOptions  []push.Option

	// ForgetToken removes the stored token on logout. Defaults to
	// deleting it from the keyring.
	ForgetToken func() error
}

// Session is the composed application state of one signed-in user.
type Session struct {
	Identity auth.Identity
	API      *api.Client
	Bus      *events.Bus
	Timer    *timer.Machine
	Channel  *push.Channel
	Inbox    *inbox.Controller
	Prefs    *store.Prefs
	Poller   *sync.Poller

	logger      *log.Logger
	forgetToken func() error
	unsubscribe []func()
	teardown    gosync.Once
}

// Start builds every service for deps.Identity, connects the push channel
// when enabled, and registers the reconciliation jobs. The poller is
// started by the caller so its results reach the Bubble Tea runtime.
func Start(deps Deps) (*Session, error) {
	if deps.Identity.UserID == "" {
		return nil, auth.ErrNoIdentity
	}
	cfg := deps.Config

	s := &Session{
		Identity:    deps.Identity,
		API:         deps.API,
		Bus:         events.NewBus(),
		Prefs:       store.NewPrefs(deps.Slots),
		logger:      deps.Logger,
		forgetToken: deps.ForgetToken,
	}
	if s.forgetToken == nil {
		s.forgetToken = func() error { return credential.Delete(credential.TokenKey) }
	}

	timerOpts := append([]timer.Option{
		timer.WithGrace(time.Duration(cfg.Timer.GraceSec) * time.Second),
	}, deps.TimerOptions...)
	s.Timer = timer.New(store.NewTimerStore(deps.Slots), deps.API, s.Bus, deps.Logger, timerOpts...)

	s.Inbox = inbox.New(deps.API, s.Prefs, s.Bus, deps.Logger, cfg.Inbox.FetchLimit)

	s.unsubscribe = append(s.unsubscribe,
		s.Bus.TimerStarted.Subscribe(func(e events.TimerStarted) {
			s.toast(events.ToastSuccess, fmt.Sprintf("Timer started: %s", e.Task.Title))
		}),
		s.Bus.TimerStopped.Subscribe(func(e events.TimerStopped) {
			s.toast(events.ToastInfo, fmt.Sprintf("Timer stopped: %s (%s)", e.Task.Title, model.FormatElapsed(e.ElapsedSeconds)))
		}),
	)

	if cfg.Push.Enabled {
		wsURL, err := push.URLFromAPI(deps.API.BaseURL(), cfg.Push.Path)
		if err != nil {
			s.Timer.Close()
			return nil, fmt.Errorf("deriving push url: %w", err)
		}
		dialer := &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: time.Duration(cfg.API.TimeoutSec) * time.Second,
		}
		pushOpts := append([]push.Option{push.WithDialer(dialer)}, deps.PushOptions...)
		s.Channel = push.New(wsURL, deps.Identity.Token, deps.Logger, pushOpts...)
		s.unsubscribe = append(s.unsubscribe, s.Channel.OnEvent(func(n model.Notification) {
			s.Inbox.OnPush(n)
		}))
		if err := s.Channel.Connect(deps.Identity.UserID); err != nil {
			s.Teardown()
			return nil, fmt.Errorf("connecting push channel: %w", err)
		}
	}

	s.Poller = sync.New(deps.Logger)
	s.Poller.Register(sync.UnreadCountJob{
		Inbox: s.Inbox,
		Every: time.Duration(cfg.Inbox.UnreadPollSec) * time.Second,
	})
	s.Poller.Register(sync.RecentJob{
		Inbox: s.Inbox,
		Every: time.Duration(cfg.Inbox.RecentPollSec) * time.Second,
	})
	s.Poller.Register(sync.TimerJob{
		Timer: s.Timer,
		Tasks: deps.API,
		Every: time.Duration(cfg.Timer.ReconcileSec) * time.Second,
	})

	deps.Logger.Printf("[INFO] session started for user %s", deps.Identity.UserID)
	return s, nil
}

func (s *Session) toast(level events.ToastLevel, msg string) {
	s.Bus.Toast.Publish(events.Toast{ID: uuid.NewString(), Message: msg, Level: level})
}

// OpenTask fetches a task and reconciles the timer against it, so a timer
// started elsewhere shows up as soon as its task is viewed.
func (s *Session) OpenTask(ctx context.Context, taskID string) (*model.Task, error) {
	rev := s.Timer.State().Revision
	task, err := s.API.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	s.Timer.Reconcile(*task, rev)
	return task, nil
}

// Teardown stops background work and releases the session's resources.
// The timer snapshot is kept so a running timer resumes next time.
func (s *Session) Teardown() {
	s.teardown.Do(func() {
		if s.Poller != nil {
			s.Poller.Stop()
		}
		if s.Channel != nil {
			s.Channel.Disconnect()
		}
		for _, unsubscribe := range s.unsubscribe {
			unsubscribe()
		}
		s.Timer.Close()
		s.logger.Printf("[INFO] session ended for user %s", s.Identity.UserID)
	})
}

// Logout tears the session down and forgets the stored token.
func (s *Session) Logout() error {
	s.Teardown()
	if err := s.forgetToken(); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	return nil
}
