package imap

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"strconv"
	"strings"

	goimap "github.com/emersion/go-imap/v2"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/huavcjj/wavemail/internal/domain/mail"
)

// messageID joins a mailbox and a UID into a Store message id.
func messageID(mailbox string, uid goimap.UID) string {
	return mailbox + ":" + strconv.FormatUint(uint64(uid), 10)
}

func parseMessageID(id string) (string, goimap.UID, error) {
	i := strings.LastIndex(id, ":")
	if i <= 0 {
		return "", 0, fmt.Errorf("%w: malformed id %q", mail.ErrNotFound, id)
	}
	uid, err := strconv.ParseUint(id[i+1:], 10, 32)
	if err != nil || uid == 0 {
		return "", 0, fmt.Errorf("%w: malformed id %q", mail.ErrNotFound, id)
	}
	return id[:i], goimap.UID(uid), nil
}

// labelsFor derives Gmail-style label ids from IMAP flags.
func labelsFor(mailbox string, boxes Mailboxes, flags []goimap.Flag) []string {
	var labels []string
	switch mailbox {
	case boxes.Inbox:
		labels = append(labels, mail.LabelInbox)
	case boxes.Spam:
		labels = append(labels, mail.LabelSpam)
	case boxes.Trash:
		labels = append(labels, mail.LabelTrash)
	}

	seen := false
	for _, f := range flags {
		switch {
		case f == goimap.FlagSeen:
			seen = true
		case f == goimap.FlagFlagged:
			labels = append(labels, "STARRED")
		case !strings.HasPrefix(string(f), `\`):
			labels = append(labels, string(f))
		}
	}
	if !seen {
		labels = append(labels, mail.LabelUnread)
	}
	return labels
}

// parseRFC822 reads a raw message into headers and a payload tree. Text
// parts are decoded to UTF-8 where the charset is known; otherwise the
// declared charset is kept on the part.
func parseRFC822(raw []byte) ([]mail.Header, *mail.Part, error) {
	e, err := message.Read(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
		return nil, nil, fmt.Errorf("failed to parse message: %w", err)
	}

	var headers []mail.Header
	fields := e.Header.Fields()
	for fields.Next() {
		v, ferr := fields.Text()
		if ferr != nil {
			v = fields.Value()
		}
		headers = append(headers, mail.Header{Name: fields.Key(), Value: v})
	}

	part, err := convertEntity(e, err)
	if err != nil {
		return nil, nil, err
	}
	return headers, part, nil
}

func convertEntity(e *message.Entity, readErr error) (*mail.Part, error) {
	mediaType, params, _ := e.Header.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	part := &mail.Part{MimeType: strings.ToLower(mediaType)}
	if _, dparams, err := e.Header.ContentDisposition(); err == nil {
		part.Filename = dparams["filename"]
	}
	if part.Filename == "" {
		part.Filename = params["name"]
	}

	if mr := e.MultipartReader(); mr != nil {
		for {
			child, err := mr.NextPart()
			if err == io.EOF {
				break
			}
			if err != nil && !message.IsUnknownCharset(err) && !message.IsUnknownEncoding(err) {
				return nil, fmt.Errorf("failed to read multipart: %w", err)
			}
			p, err := convertEntity(child, err)
			if err != nil {
				return nil, err
			}
			part.Parts = append(part.Parts, p)
		}
		return part, nil
	}

	if message.IsUnknownCharset(readErr) {
		part.Charset = params["charset"]
	}
	b, err := io.ReadAll(e.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read part body: %w", err)
	}
	part.Data = base64.URLEncoding.EncodeToString(b)
	return part, nil
}
