package parser

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armourmail/armourmail/internal/core"
)

func validRaw() RawEmail {
	return RawEmail{
		MessageID: "abc123@mail.example.com",
		From:      "IT Support <support@example.com>",
		To:        []string{"agent@corp.example.com"},
		Subject:   "Quarterly report",
		TextBody:  "Please find the report attached.",
		SPF:       "pass",
		DKIM:      "pass",
		DMARC:     "pass",
	}
}

func TestParse(t *testing.T) {
	email, err := Parse(validRaw())
	require.NoError(t, err)

	assert.Equal(t, "support@example.com", email.Sender)
	assert.Equal(t, "IT Support", email.SenderName)
	assert.Equal(t, []string{"agent@corp.example.com"}, email.Recipients)
	assert.Equal(t, "Quarterly report", email.Subject)
	assert.Equal(t, "example.com", email.SenderDomain())
	assert.True(t, email.Auth.AllPass())
	assert.False(t, email.ReceivedAt.IsZero())
}

func TestParseIDIsStable(t *testing.T) {
	first, err := Parse(validRaw())
	require.NoError(t, err)

	// A redelivery arrives later with different transport metadata but
	// the same message identity.
	redelivered := validRaw()
	redelivered.ReceivedAt = time.Now().Add(time.Hour)
	second, err := Parse(redelivered)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
}

func TestParseIDWithoutMessageID(t *testing.T) {
	raw := validRaw()
	raw.MessageID = ""

	first, err := Parse(raw)
	require.NoError(t, err)
	second, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	other := raw
	other.TextBody = "Different content entirely."
	third, err := Parse(other)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, third.ID)
}

func TestParseMessageIDFromHeaders(t *testing.T) {
	raw := validRaw()
	raw.Headers = map[string][]string{"Message-Id": {"<abc123@mail.example.com>"}}
	raw.MessageID = ""

	viaHeader, err := Parse(raw)
	require.NoError(t, err)

	viaField, err := Parse(validRaw())
	require.NoError(t, err)

	assert.Equal(t, viaField.ID, viaHeader.ID)
}

func TestParseMalformedInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RawEmail)
	}{
		{
			name:   "Missing sender",
			mutate: func(r *RawEmail) { r.From = "" },
		},
		{
			name:   "Unparseable sender",
			mutate: func(r *RawEmail) { r.From = "not an address" },
		},
		{
			name:   "No recipients",
			mutate: func(r *RawEmail) { r.To = nil },
		},
		{
			name: "No identity and no content",
			mutate: func(r *RawEmail) {
				r.MessageID = ""
				r.Subject = ""
				r.TextBody = ""
				r.HTMLBody = ""
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			tt.mutate(&raw)
			_, err := Parse(raw)
			require.Error(t, err)
			assert.True(t, errors.Is(err, core.ErrMalformedInput))
		})
	}
}

func TestParseBareSenderAddress(t *testing.T) {
	raw := validRaw()
	raw.From = "support@example.com"

	email, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "support@example.com", email.Sender)
	assert.Equal(t, "", email.SenderName)
}

func TestParseAttachmentNormalization(t *testing.T) {
	raw := validRaw()
	raw.Attachments = []RawAttachment{
		{Filename: "invoice.exe", ContentType: " Application/X-MSDownload ", Size: 2048},
	}

	email, err := Parse(raw)
	require.NoError(t, err)
	require.Len(t, email.Attachments, 1)
	assert.Equal(t, "application/x-msdownload", email.Attachments[0].ContentType)
	assert.NotEmpty(t, email.Attachments[0].ID)
}
