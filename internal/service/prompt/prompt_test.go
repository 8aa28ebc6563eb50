package prompt

import (
	"testing"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"mail jane.doe@example.com today", "mail [EMAIL] today"},
		{"ssn 123-45-6789 on file", "ssn [SSN] on file"},
		{"call 555-123-4567", "call [PHONE]"},
		{"call (555) 123-4567", "call [PHONE]"},
		{"call +1 555 123 4567 now", "call [PHONE] now"},
		{"submit report by Friday", "submit report by Friday"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.in))
		})
	}
}

func TestRender(t *testing.T) {
	e := mail.Email{Subject: "Hi bob@corp.com", Body: "ping me"}

	assert.Equal(t, "Subject: Hi bob@corp.com\nContent: ping me", Render(e, false))
	assert.Equal(t, "Subject: Hi [EMAIL]\nContent: ping me", Render(e, true))
}
