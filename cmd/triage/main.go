package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/huavcjj/wavemail/internal/config"
	"github.com/huavcjj/wavemail/internal/di"
	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/handler/oauth"
	gmailrepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/gmail"
	"github.com/huavcjj/wavemail/internal/service/pipeline"
	"github.com/spf13/cobra"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		slog.Error("command failed", "error", err)
		os.Exit(1)
	}
}

type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "wavemail-triage",
		Short:         "Run email triage passes from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			slog.SetDefault(cfg.Log.NewLogger(cmd.ErrOrStderr()))
			a.cfg = cfg
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&a.configPath, "config", os.Getenv("WAVEMAIL_CONFIG"), "path to a YAML config file")

	cmd.AddCommand(
		a.notificationsCmd(),
		a.todoListCmd(),
		a.sortCmd(),
		a.fetchCmd(),
		a.deliverCmd(),
		a.watchCmd(),
		a.authCmd(),
	)
	return cmd
}

// pipeline wires a pipeline without the LINE and database parts of the
// container.
func (a *app) pipeline(ctx context.Context) (*pipeline.Service, error) {
	store, err := di.NewStore(ctx, a.cfg)
	if err != nil {
		return nil, err
	}
	client, err := di.NewOracle(a.cfg.Oracle)
	if err != nil {
		return nil, err
	}
	return di.NewPipeline(a.cfg, store, client), nil
}

func (a *app) notificationsCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "Summarize recent important mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			items, err := p.Notifications(cmd.Context(), n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "Number of emails to inspect (default mail.default_count)")
	return cmd
}

func (a *app) todoListCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "todolist",
		Short: "Extract to-dos from important mail",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			items, err := p.TodoList(cmd.Context(), n)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), items)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "Number of emails to inspect (default mail.default_count)")
	return cmd
}

func (a *app) sortCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sort",
		Short: "File unread mail into categories",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}
			result, err := p.SortInbox(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
}

func (a *app) fetchCmd() *cobra.Command {
	var (
		n      int
		expr   string
		sender string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Print emails matching a search expression",
		RunE: func(cmd *cobra.Command, args []string) error {
			if expr != "" && sender != "" {
				return errors.New("use either --query or --sender, not both")
			}
			p, err := a.pipeline(cmd.Context())
			if err != nil {
				return err
			}

			var emails []mail.Email
			switch {
			case expr != "":
				emails, err = p.Fetch(cmd.Context(), expr, n)
			case sender != "":
				emails, err = p.FetchFromSender(cmd.Context(), sender, n)
			default:
				emails, err = p.FetchLatest(cmd.Context(), n)
			}
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), emails)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "Number of emails (default mail.default_count)")
	cmd.Flags().StringVarP(&expr, "query", "q", "", "Search expression, e.g. \"is:unread newer_than:2d\"")
	cmd.Flags().StringVar(&sender, "sender", "", "Only mail from this sender")
	return cmd
}

func (a *app) deliverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "deliver",
		Short: "Push new important mail to LINE",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.NewContainer(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			defer container.Close()
			if container.NotificationService == nil {
				return errors.New("line.channel_token is not configured")
			}

			sent, err := container.NotificationService.Deliver(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]int{"delivered": sent})
		},
	}
}

func (a *app) watchCmd() *cobra.Command {
	var topic string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Register a Gmail Pub/Sub watch on the inbox",
		RunE: func(cmd *cobra.Command, args []string) error {
			if topic == "" {
				topic = a.cfg.Gmail.PubSubTopic
			}
			if topic == "" {
				return errors.New("a Pub/Sub topic is required (--topic or gmail.pubsub_topic)")
			}
			store, err := di.NewStore(cmd.Context(), a.cfg)
			if err != nil {
				return err
			}
			watcher, ok := store.(mail.Watcher)
			if !ok {
				return fmt.Errorf("mail provider %q does not support watch", a.cfg.Mail.Provider)
			}

			historyID, err := watcher.Watch(cmd.Context(), topic)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"topic": topic, "history_id": historyID})
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "Pub/Sub topic, projects/<project>/topics/<topic>")
	return cmd
}

func (a *app) authCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and save the token file",
		RunE: func(cmd *cobra.Command, args []string) error {
			oauthConfig, err := gmailrepo.LoadConfig(a.cfg.Gmail.CredentialsPath)
			if err != nil {
				return err
			}
			oauthConfig.RedirectURL = "http://" + addr + "/oauth/gmail/callback"

			h := oauth.NewGmailOAuthHandler(oauthConfig, a.cfg.Gmail.TokenPath, uuid.NewString())
			r := chi.NewRouter()
			r.Get("/oauth/gmail/callback", h.HandleCallback)
			server := &http.Server{
				Addr:              addr,
				Handler:           r,
				ReadHeaderTimeout: 15 * time.Second,
			}

			serverErr := make(chan error, 1)
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					serverErr <- err
				}
			}()
			defer server.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "Open this URL in your browser:\n\n%s\n\n", h.AuthURL())

			select {
			case err := <-h.Done():
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Token saved to %s\n", a.cfg.Gmail.TokenPath)
				return nil
			case err := <-serverErr:
				return fmt.Errorf("callback server error: %w", err)
			case <-cmd.Context().Done():
				return cmd.Context().Err()
			}
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "localhost:8085", "Listen address for the OAuth redirect")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
