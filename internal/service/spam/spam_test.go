package spam

import (
	"testing"

	"github.com/huavcjj/wavemail/internal/domain/mail"
	"github.com/stretchr/testify/assert"
)

func TestIsSpam(t *testing.T) {
	f := NewFilter()

	tests := []struct {
		name  string
		email mail.Email
		want  bool
	}{
		{"newsletter subject", mail.Email{Subject: "Weekly Newsletter", Body: "news inside"}, true},
		{"unsubscribe footer", mail.Email{Subject: "Hello", Body: "Click here to UNSUBSCRIBE."}, true},
		{"hyphenated keyword", mail.Email{Subject: "Un-subscribe now", Body: ""}, true},
		{"punctuated promo", mail.Email{Subject: "P.R.O.M.O code inside", Body: ""}, true},
		{"plain work mail", mail.Email{Subject: "Standup notes", Body: "submit report by Friday"}, false},
		{"empty", mail.Email{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, f.IsSpam(tt.email))
		})
	}
}

func TestIsSpamDeterministic(t *testing.T) {
	f := NewFilter()
	e := mail.Email{Subject: "Big SALE!!!", Body: "today only"}
	for range 3 {
		assert.True(t, f.IsSpam(e))
	}
	assert.Equal(t, f.IsSpam(mail.Email{Subject: "Big sale"}), f.IsSpam(mail.Email{Subject: "Big, sale."}))
}

func TestCustomKeywords(t *testing.T) {
	f := NewFilter("Limited-Offer", " ")
	assert.True(t, f.IsSpam(mail.Email{Body: "a limited-offer for you"}))
	assert.False(t, f.IsSpam(mail.Email{Body: "newsletter"}))
}
