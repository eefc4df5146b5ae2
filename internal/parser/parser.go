// Package parser normalizes raw inbound payloads into canonical email
// records. It performs no I/O and no logging; its only effect is
// object construction.
package parser

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/armourmail/armourmail/internal/core"
)

// RawAttachment is attachment metadata as delivered by the transport.
// Content stays in external object storage.
type RawAttachment struct {
	ID          string
	Filename    string
	ContentType string
	Size        int64
}

// RawEmail is the payload shape the ingestion collaborator delivers.
type RawEmail struct {
	MessageID   string
	From        string
	To          []string
	Subject     string
	TextBody    string
	HTMLBody    string
	Headers     map[string][]string
	SPF         string
	DKIM        string
	DMARC       string
	ReceivedAt  time.Time
	Attachments []RawAttachment
}

// Parse constructs a CanonicalEmail from a raw payload. The canonical
// id is derived from the stable message identifier, never from the
// clock, so a duplicate delivery of the same message yields the same
// id. Missing sender, recipients or a derivable message identity fail
// with core.ErrMalformedInput.
func Parse(raw RawEmail) (*core.CanonicalEmail, error) {
	sender, senderName, err := splitAddress(raw.From)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid sender %q", core.ErrMalformedInput, raw.From)
	}

	recipients := make([]string, 0, len(raw.To))
	for _, to := range raw.To {
		addr, _, err := splitAddress(to)
		if err != nil {
			continue
		}
		recipients = append(recipients, addr)
	}
	if len(recipients) == 0 {
		return nil, fmt.Errorf("%w: no valid recipients", core.ErrMalformedInput)
	}

	key, err := messageKey(raw, sender)
	if err != nil {
		return nil, err
	}

	received := raw.ReceivedAt
	if received.IsZero() {
		received = time.Now().UTC()
	}

	attachments := make([]core.Attachment, 0, len(raw.Attachments))
	for i, a := range raw.Attachments {
		id := a.ID
		if id == "" {
			id = fmt.Sprintf("%s/%d", key, i)
		}
		attachments = append(attachments, core.Attachment{
			ID:          id,
			Filename:    a.Filename,
			ContentType: strings.ToLower(strings.TrimSpace(a.ContentType)),
			Size:        a.Size,
		})
	}

	return &core.CanonicalEmail{
		ID:         uuid.NewSHA1(uuid.NameSpaceURL, []byte("armourmail:email:"+key)),
		Sender:     sender,
		SenderName: senderName,
		Recipients: recipients,
		Subject:    raw.Subject,
		TextBody:   raw.TextBody,
		HTMLBody:   raw.HTMLBody,
		Headers:    copyHeaders(raw.Headers),
		Auth: core.AuthResults{
			SPF:   core.ParseAuthState(raw.SPF),
			DKIM:  core.ParseAuthState(raw.DKIM),
			DMARC: core.ParseAuthState(raw.DMARC),
		},
		ReceivedAt:  received,
		Attachments: attachments,
	}, nil
}

// messageKey returns the stable identity used for id derivation: the
// Message-ID when present, otherwise a digest over content fields that
// survive duplicate delivery unchanged.
func messageKey(raw RawEmail, sender string) (string, error) {
	if id := strings.TrimSpace(raw.MessageID); id != "" {
		return strings.Trim(id, "<>"), nil
	}
	for name, values := range raw.Headers {
		if strings.EqualFold(name, "Message-Id") && len(values) > 0 && strings.TrimSpace(values[0]) != "" {
			return strings.Trim(strings.TrimSpace(values[0]), "<>"), nil
		}
	}
	if raw.Subject == "" && raw.TextBody == "" && raw.HTMLBody == "" {
		return "", fmt.Errorf("%w: no message id and no content to derive one from", core.ErrMalformedInput)
	}
	h := sha256.New()
	h.Write([]byte(sender))
	h.Write([]byte{0})
	h.Write([]byte(raw.Subject))
	h.Write([]byte{0})
	h.Write([]byte(raw.TextBody))
	h.Write([]byte{0})
	h.Write([]byte(raw.HTMLBody))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// splitAddress parses "Display Name <addr>" into (addr, name).
func splitAddress(s string) (string, string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", "", fmt.Errorf("empty address")
	}
	addr, err := mail.ParseAddress(s)
	if err != nil {
		// Some transports hand over bare addresses that net/mail
		// rejects (for example with stray commas in the name part).
		if strings.Contains(s, "@") && !strings.ContainsAny(s, "<> ") {
			return strings.ToLower(s), "", nil
		}
		return "", "", err
	}
	return strings.ToLower(addr.Address), addr.Name, nil
}

func copyHeaders(h map[string][]string) map[string][]string {
	out := make(map[string][]string, len(h))
	for k, v := range h {
		out[k] = append([]string(nil), v...)
	}
	return out
}
