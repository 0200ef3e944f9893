package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MrSnakeDoc/confsync/internal/app"
	"github.com/MrSnakeDoc/confsync/internal/config"
	"github.com/MrSnakeDoc/confsync/internal/domain"
	"github.com/MrSnakeDoc/confsync/internal/imminent"
	"github.com/MrSnakeDoc/confsync/internal/logger"
	"github.com/MrSnakeDoc/confsync/internal/pipeline"
	"github.com/MrSnakeDoc/confsync/internal/version"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "❌ confsync: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "confsync",
		Short:         "Conference schedule sync and notification fan-out",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		// No subcommand keeps the container entrypoint behaviour.
		RunE: func(_ *cobra.Command, _ []string) error { return app.Serve() },
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newImportCmd())
	root.AddCommand(newImminentCmd())
	root.AddCommand(newBookmarkCmd())
	root.AddCommand(newQueueCmd())
	return root
}

// withServices loads the configuration, wires the core and runs fn.
func withServices(fn func(ctx context.Context, svc *app.Services) error) error {
	cfg := config.Load()
	log := logger.New(cfg.LogLevel, cfg.PrettyLog)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.Wire(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer svc.Close()
	return fn(ctx, svc)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the periodic import, the imminent-start scan and the admin API",
		RunE:  func(_ *cobra.Command, _ []string) error { return app.Serve() },
	}
}

func newImportCmd() *cobra.Command {
	var file string
	var force, groupByUser bool

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import the schedule once and enqueue the resulting notifications",
		Long: `Import the schedule once and enqueue the resulting notifications.

The import takes the same Redis lock as a running server, so it fails with
"import already in progress" instead of racing another instance.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if file != "" {
				if err := os.Setenv("CONFSYNC_SCHEDULE_SOURCE", file); err != nil {
					return err
				}
			}
			req := pipeline.Request{Force: force}
			if cmd.Flags().Changed("group-by-user") {
				req.GroupByUser = &groupByUser
			}
			return withServices(func(ctx context.Context, svc *app.Services) error {
				sum, err := svc.Importer.Import(ctx, req)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), sum)
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "schedule file or URL (overrides CONFSYNC_SCHEDULE_SOURCE)")
	cmd.Flags().BoolVar(&force, "force", false, "reconcile even when the checksum matches")
	cmd.Flags().BoolVar(&groupByUser, "group-by-user", true, "one notification per user instead of one per session")
	return cmd
}

func newImminentCmd() *cobra.Command {
	var at string
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "notify-imminent",
		Short: "Alert bookmarkers of sessions starting within the lookahead window",
		RunE: func(cmd *cobra.Command, _ []string) error {
			now := time.Now()
			if at != "" {
				t, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --now: %w", err)
				}
				now = t
			}
			return withServices(func(ctx context.Context, svc *app.Services) error {
				confs, err := svc.Store.ListConferences(ctx)
				if err != nil {
					return err
				}
				out := make(map[string]imminent.Result, len(confs))
				for _, c := range confs {
					res, err := svc.Imminent.Run(ctx, c.ID, now, dryRun)
					if err != nil {
						return fmt.Errorf("conference %s: %w", c.ID, err)
					}
					out[c.ID] = res
				}
				return printJSON(cmd.OutOrStdout(), out)
			})
		},
	}
	cmd.Flags().StringVar(&at, "now", "", "evaluate the window at this RFC3339 instant")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report without enqueueing or flagging sessions")
	return cmd
}

func newBookmarkCmd() *cobra.Command {
	var token, email string

	cmd := &cobra.Command{
		Use:   "bookmark <order-code> <session-unique-id>",
		Short: "Toggle a bookmark, registering the user when unknown",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			orderCode, uid := args[0], args[1]
			return withServices(func(ctx context.Context, svc *app.Services) error {
				conf, ok, err := svc.Store.FindConferenceBySource(ctx, svc.Importer.Source())
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: no conference imported from %s", domain.ErrNotFound, svc.Importer.Source())
				}

				ses, ok, err := svc.Store.FindSessionByUniqueID(ctx, conf.ID, uid)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("%w: session %s", domain.ErrNotFound, uid)
				}

				user, ok, err := svc.Store.FindUserByOrderCode(ctx, conf.ID, orderCode)
				if err != nil {
					return err
				}
				if !ok {
					user = domain.User{
						ID:           uuid.NewString(),
						ConferenceID: conf.ID,
						OrderCode:    orderCode,
						CreatedAt:    time.Now().UTC(),
					}
				}
				if cmd.Flags().Changed("token") {
					user.DeliveryToken = token
				}
				if cmd.Flags().Changed("email") {
					user.Email = email
				}
				if err := svc.Store.SaveUser(ctx, user); err != nil {
					return err
				}

				on, err := svc.Store.ToggleBookmark(ctx, user.ID, ses.ID)
				if err != nil {
					return err
				}
				state := "removed"
				if on {
					state = "added"
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "bookmark %s: user=%s session=%s (%s)\n", state, user.ID, ses.ID, ses.Title)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "delivery token of the user's device")
	cmd.Flags().StringVar(&email, "email", "", "user email")
	return cmd
}

func newQueueCmd() *cobra.Command {
	queue := &cobra.Command{Use: "queue", Short: "Inspect the delivery queue"}

	var limit int64
	peek := &cobra.Command{
		Use:   "peek",
		Short: "Show pending payloads without consuming them",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(func(ctx context.Context, svc *app.Services) error {
				n, err := svc.Queue.Length(ctx)
				if err != nil {
					return err
				}
				payloads, err := svc.Queue.Peek(ctx, limit)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d pending\n", svc.Queue.Name(), n)
				return printJSON(cmd.OutOrStdout(), payloads)
			})
		},
	}
	peek.Flags().Int64Var(&limit, "limit", 20, "payloads to show")

	var auditLimit int64
	audit := &cobra.Command{
		Use:   "audit",
		Short: "Show the most recent enqueue audit entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(func(ctx context.Context, svc *app.Services) error {
				entries, err := svc.Queue.RecentAudit(ctx, auditLimit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), entries)
			})
		},
	}
	audit.Flags().Int64Var(&auditLimit, "limit", 50, "entries to show")

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the last recorded import of the configured source",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServices(func(ctx context.Context, svc *app.Services) error {
				st, ok, err := svc.Status.Get(ctx, svc.Importer.Source())
				if err != nil {
					return err
				}
				if !ok {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no import recorded")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), st)
			})
		},
	}

	queue.AddCommand(peek, audit, status)
	return queue
}
