package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/emdrtap/go/internal/config"
	"github.com/mcdev12/emdrtap/go/internal/remote"
	"github.com/mcdev12/emdrtap/go/internal/session"
	"github.com/mcdev12/emdrtap/go/internal/tap"
	"github.com/mcdev12/emdrtap/go/internal/tui"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newMenuCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "menu",
		Short: "Choose between hosting, joining and a local session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMenu(cmd.Context(), opts)
		},
	}
}

func newHostCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Host a session that guests can follow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRole(cmd.Context(), opts, session.RoleHost, "")
		},
	}
}

func newJoinCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "join [session-id]",
		Short: "Follow a hosted session",
		Long:  "Follow a hosted session. Without an ID the join keypad is shown.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var initial string
			if len(args) == 1 {
				initial = args[0]
			}
			return runRole(cmd.Context(), opts, session.RoleGuest, initial)
		},
	}
}

func newLocalCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "local",
		Short: "Run a session without sharing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRole(cmd.Context(), opts, session.RoleLocal, "")
		},
	}
}

func runMenu(ctx context.Context, opts *rootOptions) error {
	choice, err := tui.RunMenu(ctx)
	if err != nil {
		return fmt.Errorf("run menu: %w", err)
	}

	switch choice {
	case tui.ChoiceHost:
		return runRole(ctx, opts, session.RoleHost, "")
	case tui.ChoiceJoin:
		return runRole(ctx, opts, session.RoleGuest, "")
	case tui.ChoiceLocal:
		return runRole(ctx, opts, session.RoleLocal, "")
	default:
		return nil
	}
}

func runRole(ctx context.Context, opts *rootOptions, role session.Role, initial string) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logs, err := setupFileLogging(cfg.Log)
	if err != nil {
		return err
	}
	defer logs.Close()

	services, err := setupServices(ctx, cfg, serviceNeeds{
		store: role != session.RoleLocal,
		prefs: role != session.RoleGuest,
	})
	if err != nil {
		return err
	}
	defer services.Close()

	sc, err := resolveContext(ctx, services, role, initial)
	if errors.Is(err, tui.ErrCancelled) {
		return nil
	}
	if err != nil {
		return err
	}

	s, err := tap.New(sessionConfig(cfg, services, sc))
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	log.Info().Str("role", sc.Role.String()).Str("session_id", sc.ID.String()).Msg("starting session")
	return tui.RunSession(ctx, s)
}

// resolveContext turns the chosen role into a session context: hosts get a
// fresh ID and guests go through the join keypad.
func resolveContext(ctx context.Context, services *Services, role session.Role, initial string) (session.Context, error) {
	switch role {
	case session.RoleHost:
		id := session.NewAllocator(services.Store, nil).Allocate(ctx)
		return session.Host(id), nil
	case session.RoleGuest:
		joiner := session.NewJoiner(services.Store, services.Feedback)
		return tui.RunJoin(ctx, joiner, initial)
	default:
		return session.Local(), nil
	}
}

func sessionConfig(cfg *config.Config, services *Services, sc session.Context) tap.Config {
	tc := tap.DefaultConfig(sc)
	tc.Store = services.Store
	tc.Prefs = services.Prefs
	tc.Feedback = services.Feedback
	tc.Metrics = services.Metrics
	tc.Publisher = remote.PublisherConfig{WriteTimeout: cfg.Store.WriteTimeout}
	return tc
}
