package gmail

import (
	"mime"
	"strings"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"google.golang.org/api/gmail/v1"
)

func convertMessage(msg *gmail.Message) *mail.Message {
	out := &mail.Message{
		ID:       msg.Id,
		ThreadID: msg.ThreadId,
		LabelIDs: msg.LabelIds,
	}
	if msg.Payload == nil {
		return out
	}
	for _, h := range msg.Payload.Headers {
		out.Headers = append(out.Headers, mail.Header{Name: h.Name, Value: h.Value})
	}
	out.Payload = convertPart(msg.Payload)
	return out
}

func convertPart(p *gmail.MessagePart) *mail.Part {
	part := &mail.Part{
		MimeType: p.MimeType,
		Filename: p.Filename,
		Charset:  partCharset(p),
	}
	if p.Body != nil {
		part.Data = p.Body.Data
	}
	for _, child := range p.Parts {
		part.Parts = append(part.Parts, convertPart(child))
	}
	return part
}

func partCharset(p *gmail.MessagePart) string {
	for _, h := range p.Headers {
		if !strings.EqualFold(h.Name, "Content-Type") {
			continue
		}
		if _, params, err := mime.ParseMediaType(h.Value); err == nil {
			return params["charset"]
		}
	}
	return ""
}
