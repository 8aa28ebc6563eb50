// Package imap implements mail.Store on top of a plain IMAP account.
// Message ids have the form "<mailbox>:<uid>". Spam, trash and category
// labels map onto mailboxes; labels without a mailbox become keywords.
package imap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"slices"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-imap/v2/imapclient"
	"github.com/huavcjj/wavemail/internal/domain/mail"
)

type Mailboxes struct {
	Inbox   string
	Spam    string
	Trash   string
	Archive string
	// Categories maps a category name such as "promotions" to a mailbox.
	Categories map[string]string
}

func DefaultMailboxes() Mailboxes {
	return Mailboxes{
		Inbox: "INBOX",
		Spam:  "Junk",
		Trash: "Trash",
	}
}

type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	// TLS selects implicit TLS; otherwise STARTTLS is used.
	TLS       bool
	Mailboxes Mailboxes
}

type Repo struct {
	cfg Config
	now func() time.Time
}

var _ mail.Store = (*Repo)(nil)

func NewIMAPRepo(cfg Config) (*Repo, error) {
	if cfg.Host == "" {
		return nil, errors.New("imap host is required")
	}
	if cfg.Port == "" {
		cfg.Port = "993"
	}
	def := DefaultMailboxes()
	if cfg.Mailboxes.Inbox == "" {
		cfg.Mailboxes.Inbox = def.Inbox
	}
	if cfg.Mailboxes.Spam == "" {
		cfg.Mailboxes.Spam = def.Spam
	}
	if cfg.Mailboxes.Trash == "" {
		cfg.Mailboxes.Trash = def.Trash
	}

	return &Repo{cfg: cfg, now: time.Now}, nil
}

func (r *Repo) connect(ctx context.Context) (*imapclient.Client, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	addr := net.JoinHostPort(r.cfg.Host, r.cfg.Port)

	var (
		c   *imapclient.Client
		err error
	)
	if r.cfg.TLS {
		c, err = imapclient.DialTLS(addr, nil)
	} else {
		c, err = imapclient.DialStartTLS(addr, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to imap %s: %w", addr, err)
	}

	if err := c.Login(r.cfg.Username, r.cfg.Password).Wait(); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("failed to log in as %s: %w", r.cfg.Username, err)
	}
	return c, nil
}

// session dials, selects mailbox and runs fn. The connection is closed
// when ctx is cancelled so blocking commands return.
func (r *Repo) session(ctx context.Context, mailbox string, fn func(c *imapclient.Client) error) error {
	c, err := r.connect(ctx)
	if err != nil {
		return err
	}
	stop := context.AfterFunc(ctx, func() { _ = c.Close() })
	defer func() {
		stop()
		if err := c.Logout().Wait(); err != nil {
			slog.Debug("imap logout failed", "error", err)
		}
		_ = c.Close()
	}()

	if _, err := c.Select(mailbox, nil).Wait(); err != nil {
		return fmt.Errorf("failed to select %s: %w", mailbox, err)
	}
	if err := fn(c); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

// Search returns matching ids newest first.
func (r *Repo) Search(ctx context.Context, expr string, max int) ([]string, error) {
	mailbox, criteria, err := translate(expr, r.cfg.Mailboxes, r.now())
	if err != nil {
		return nil, fmt.Errorf("failed to translate query %q: %w", expr, err)
	}

	var ids []string
	err = r.session(ctx, mailbox, func(c *imapclient.Client) error {
		data, err := c.UIDSearch(criteria, nil).Wait()
		if err != nil {
			return fmt.Errorf("failed to search messages: %w", err)
		}
		uids := data.AllUIDs()
		slices.Reverse(uids)
		if max > 0 && len(uids) > max {
			uids = uids[:max]
		}
		for _, uid := range uids {
			ids = append(ids, messageID(mailbox, uid))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*mail.Message, error) {
	mailbox, uid, err := parseMessageID(id)
	if err != nil {
		return nil, err
	}

	var msg *mail.Message
	err = r.session(ctx, mailbox, func(c *imapclient.Client) error {
		section := &goimap.FetchItemBodySection{Peek: true}
		cmd := c.Fetch(goimap.UIDSetNum(uid), &goimap.FetchOptions{
			UID:         true,
			Flags:       true,
			BodySection: []*goimap.FetchItemBodySection{section},
		})
		defer cmd.Close()

		data := cmd.Next()
		if data == nil {
			if err := cmd.Close(); err != nil {
				return fmt.Errorf("failed to fetch message: %w", err)
			}
			return fmt.Errorf("%w: %s", mail.ErrNotFound, id)
		}
		buf, err := data.Collect()
		if err != nil {
			return fmt.Errorf("failed to collect message: %w", err)
		}

		headers, payload, err := parseRFC822(buf.FindBodySection(section))
		if err != nil {
			return err
		}
		msg = &mail.Message{
			ID:       id,
			ThreadID: id,
			LabelIDs: labelsFor(mailbox, r.cfg.Mailboxes, buf.Flags),
			Headers:  headers,
			Payload:  payload,
		}
		return cmd.Close()
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func (r *Repo) MarkSpam(ctx context.Context, id string) error {
	return r.move(ctx, id, r.cfg.Mailboxes.Spam)
}

func (r *Repo) MoveToTrash(ctx context.Context, id string) error {
	return r.move(ctx, id, r.cfg.Mailboxes.Trash)
}

// ModifyLabels applies Gmail-style label changes. UNREAD toggles \Seen,
// STARRED toggles \Flagged, a label with a mapped mailbox moves the message
// there, and other labels are stored as keywords. Removing INBOX without a
// destination moves the message to the archive mailbox when one is set.
func (r *Repo) ModifyLabels(ctx context.Context, id string, add, remove []string) error {
	mailbox, uid, err := parseMessageID(id)
	if err != nil {
		return err
	}
	plan := r.planLabels(add, remove)

	return r.session(ctx, mailbox, func(c *imapclient.Client) error {
		set := goimap.UIDSetNum(uid)
		if len(plan.addFlags) > 0 {
			if err := storeFlags(c, set, goimap.StoreFlagsAdd, plan.addFlags); err != nil {
				return err
			}
		}
		if len(plan.delFlags) > 0 {
			if err := storeFlags(c, set, goimap.StoreFlagsDel, plan.delFlags); err != nil {
				return err
			}
		}
		if plan.dest != "" && plan.dest != mailbox {
			if _, err := c.Move(set, plan.dest).Wait(); err != nil {
				return fmt.Errorf("failed to move message to %s: %w", plan.dest, err)
			}
		}
		return nil
	})
}

type labelPlan struct {
	addFlags []goimap.Flag
	delFlags []goimap.Flag
	dest     string
}

func (r *Repo) planLabels(add, remove []string) labelPlan {
	var p labelPlan
	boxes := r.cfg.Mailboxes
	for _, l := range add {
		switch l {
		case mail.LabelUnread:
			p.delFlags = append(p.delFlags, goimap.FlagSeen)
		case "STARRED", "IMPORTANT":
			p.addFlags = append(p.addFlags, goimap.FlagFlagged)
		case mail.LabelInbox:
			p.dest = boxes.Inbox
		case mail.LabelSpam:
			p.dest = boxes.Spam
		case mail.LabelTrash:
			p.dest = boxes.Trash
		default:
			if box, ok := boxes.Categories[categoryName(l)]; ok {
				p.dest = box
				continue
			}
			p.addFlags = append(p.addFlags, goimap.Flag(l))
		}
	}
	for _, l := range remove {
		switch l {
		case mail.LabelUnread:
			p.addFlags = append(p.addFlags, goimap.FlagSeen)
		case "STARRED", "IMPORTANT":
			p.delFlags = append(p.delFlags, goimap.FlagFlagged)
		case mail.LabelInbox:
			if p.dest == "" {
				p.dest = boxes.Archive
			}
		default:
			p.delFlags = append(p.delFlags, goimap.Flag(l))
		}
	}
	return p
}

func categoryName(label string) string {
	return strings.ToLower(strings.TrimPrefix(label, "CATEGORY_"))
}

func (r *Repo) move(ctx context.Context, id, dest string) error {
	mailbox, uid, err := parseMessageID(id)
	if err != nil {
		return err
	}
	if mailbox == dest {
		return nil
	}
	return r.session(ctx, mailbox, func(c *imapclient.Client) error {
		if _, err := c.Move(goimap.UIDSetNum(uid), dest).Wait(); err != nil {
			return fmt.Errorf("failed to move message to %s: %w", dest, err)
		}
		return nil
	})
}

func storeFlags(c *imapclient.Client, set goimap.UIDSet, op goimap.StoreFlagsOp, flags []goimap.Flag) error {
	err := c.Store(set, &goimap.StoreFlags{Op: op, Silent: true, Flags: flags}, nil).Close()
	if err != nil {
		return fmt.Errorf("failed to store flags: %w", err)
	}
	return nil
}
