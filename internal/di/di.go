package di

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"

	"github.com/huavcjj/wavemail/internal/config"
	delivery_domain "github.com/huavcjj/wavemail/internal/domain/delivery"
	line_domain "github.com/huavcjj/wavemail/internal/domain/line"
	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/huavcjj/wavemail/internal/domain/oracle"
	"github.com/huavcjj/wavemail/internal/infrastructure/credential"
	"github.com/huavcjj/wavemail/internal/infrastructure/db"
	"github.com/huavcjj/wavemail/internal/infrastructure/llm"
	"github.com/huavcjj/wavemail/internal/infrastructure/llm/groq"
	"github.com/huavcjj/wavemail/internal/infrastructure/llm/ollama"
	deliveryrepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/delivery"
	gmailrepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/gmail"
	imaprepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/imap"
	linerepo "github.com/huavcjj/wavemail/internal/infrastructure/repository/line"
	"github.com/huavcjj/wavemail/internal/service/importance"
	"github.com/huavcjj/wavemail/internal/service/notification"
	"github.com/huavcjj/wavemail/internal/service/pipeline"
	"github.com/huavcjj/wavemail/internal/service/sorter"
	"github.com/huavcjj/wavemail/internal/service/spam"
	"github.com/huavcjj/wavemail/internal/service/summarizer"
	"github.com/huavcjj/wavemail/internal/service/tasks"
	"github.com/jmoiron/sqlx"
)

type Container struct {
	DB           *sqlx.DB
	Store        mail.Store
	Oracle       oracle.Client
	Pipeline     *pipeline.Service
	DeliveryRepo delivery_domain.DeliveryRepo
	LineRepo     line_domain.LineRepo
	// NotificationService is nil when no LINE channel token is configured.
	NotificationService *notification.Service
}

// NewContainer builds the full service graph from cfg.
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	store, err := NewStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	client, err := NewOracle(cfg.Oracle)
	if err != nil {
		return nil, err
	}

	c := &Container{
		Store:    store,
		Oracle:   client,
		Pipeline: NewPipeline(cfg, store, client),
	}

	if cfg.Line.ChannelToken == "" {
		slog.Warn("line channel token not set, notifications disabled")
		return c, nil
	}

	c.DB, err = openDB(ctx, cfg.DB)
	if err != nil {
		return nil, err
	}
	c.DeliveryRepo = deliveryrepo.NewDeliveryRepo(c.DB)

	c.LineRepo, err = linerepo.NewLineRepo(cfg.Line.ChannelToken)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize LINE repository: %w", err)
	}

	c.NotificationService = notification.NewService(
		c.Pipeline,
		c.LineRepo,
		c.DeliveryRepo,
		cfg.Line.UserID,
		cfg.Mail.DefaultCount,
	)
	return c, nil
}

// NewStore connects the configured mail provider.
func NewStore(ctx context.Context, cfg *config.Config) (mail.Store, error) {
	switch cfg.Mail.Provider {
	case "imap":
		password, err := credential.Lookup(cfg.IMAP.Password, credential.IMAPPass)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve IMAP password: %w", err)
		}
		repo, err := imaprepo.NewIMAPRepo(imaprepo.Config{
			Host:     cfg.IMAP.Host,
			Port:     cfg.IMAP.Port,
			Username: cfg.IMAP.Username,
			Password: password,
			TLS:      cfg.IMAP.TLS,
			Mailboxes: imaprepo.Mailboxes{
				Inbox:      cfg.IMAP.Inbox,
				Spam:       cfg.IMAP.Spam,
				Trash:      cfg.IMAP.Trash,
				Archive:    cfg.IMAP.Archive,
				Categories: cfg.IMAP.Categories,
			},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize IMAP repository: %w", err)
		}
		slog.Info("mail store ready", "provider", "imap", "address", net.JoinHostPort(cfg.IMAP.Host, cfg.IMAP.Port))
		return repo, nil
	default:
		repo, err := gmailrepo.NewGmailRepo(ctx, gmailrepo.Config{
			CredentialsPath: cfg.Gmail.CredentialsPath,
			TokenPath:       cfg.Gmail.TokenPath,
			User:            cfg.Gmail.User,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gmail repository: %w", err)
		}
		slog.Info("mail store ready", "provider", "gmail", "user", cfg.Gmail.User)
		return repo, nil
	}
}

// NewOracle builds the configured backend behind an llm.Guard.
func NewOracle(cfg config.OracleConfig) (oracle.Client, error) {
	var backend oracle.Client
	switch cfg.Provider {
	case "ollama":
		c, err := ollama.NewClient(cfg.BaseURL, cfg.Model)
		if err != nil {
			return nil, err
		}
		backend = c
	default:
		key, err := credential.Lookup(cfg.APIKey, credential.GroqAPIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve groq api key: %w", err)
		}
		c, err := groq.NewClient(groq.Config{
			APIKey:      key,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
		if err != nil {
			return nil, err
		}
		backend = c
	}

	slog.Info("oracle ready", "provider", cfg.Provider, "model", cfg.Model)
	return llm.NewGuard(backend, llm.GuardConfig{
		Timeout:       cfg.Timeout,
		MaxRetries:    cfg.MaxRetries,
		Backoff:       cfg.RetryBackoff,
		MaxConcurrent: cfg.MaxConcurrent,
	}), nil
}

// NewPipeline wires the triage services around store and client.
func NewPipeline(cfg *config.Config, store mail.Store, client oracle.Client) *pipeline.Service {
	redact := cfg.Oracle.RedactPII

	classifier := importance.NewClassifier(client,
		importance.WithKeywords(cfg.Rules.ImportanceKeywords...),
		importance.WithVIPs(cfg.Rules.VIPs...),
		importance.WithRedaction(redact),
	)

	sortOpts := []sorter.Option{sorter.WithRedaction(redact)}
	if cfg.Oracle.SortGuidance != "" {
		sortOpts = append(sortOpts, sorter.WithGuidance(cfg.Oracle.SortGuidance))
	}

	return pipeline.NewService(
		store,
		classifier,
		summarizer.NewSummarizer(client, redact),
		tasks.NewExtractor(spam.NewFilter(cfg.Rules.SpamKeywords...), classifier, client, redact),
		sorter.NewSorter(store, classifier, client, sortOpts...),
		pipeline.Options{
			NotificationsQuery: cfg.Mail.NotificationsQuery,
			TodoQuery:          cfg.Mail.TodoQuery,
			SortQuery:          cfg.Mail.SortQuery,
			DefaultCount:       cfg.Mail.DefaultCount,
			SortLimit:          cfg.Mail.SortLimit,
			Concurrency:        cfg.Triage.Concurrency,
		},
	)
}

// openDB falls back to an in-memory SQLite database when no driver is
// configured, so delivery history lasts for the life of the process.
func openDB(ctx context.Context, cfg config.DBConfig) (*sqlx.DB, error) {
	driver, dsn := cfg.Driver, cfg.DSN
	switch driver {
	case "":
		slog.Warn("db driver not set, delivery history kept in memory")
		driver, dsn = db.DriverSQLite, ":memory:"
	case db.DriverMySQL:
		if dsn == "" {
			dsn = db.MySQLDSN(cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		}
	case db.DriverSQLite:
		if dsn == "" {
			dsn = cfg.Name + ".db"
		}
	}

	return db.Open(ctx, driver, dsn)
}

func (c *Container) Close() error {
	var errs []error
	if c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}
