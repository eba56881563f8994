// Package message turns raw RFC 822 / MIME text retrieved from a mailbox
// into structured records: envelope fields, decoded address lists, inline
// body parts and attachments.
package message

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/k3a/html2text"
	"lukechampine.com/blake3"

	"github.com/migadu/popfetch/consts"
	"github.com/migadu/popfetch/helpers"
	"github.com/migadu/popfetch/pkg/metrics"
)

// Record is a fully decoded message.
type Record struct {
	ID            string       `json:"id"`
	Parent        string       `json:"parent,omitempty"`
	Topic         string       `json:"topic"`
	Mailbox       string       `json:"mailbox"`
	Date          *time.Time   `json:"date,omitempty"`
	Subject       string       `json:"subject"`
	From          Address      `json:"from"`
	To            []Address    `json:"to"`
	Cc            []Address    `json:"cc"`
	Bcc           []Address    `json:"bcc"`
	Flags         []string     `json:"flags"`
	HasAttachment bool         `json:"has_attachment"`
	Attachments   []Attachment `json:"attachments,omitempty"`
	Body          Parts        `json:"body,omitempty"`
	Raw           string       `json:"raw"`
}

// PlainText returns the text/plain part, or the text/html part rendered to
// text when there is no plain part.
func (r *Record) PlainText() string {
	if text, ok := r.Body["text/plain"]; ok {
		return text
	}
	if h, ok := r.Body["text/html"]; ok {
		return html2text.HTML2Text(h)
	}
	return ""
}

// Assemble decodes a raw message into a Record. flags are copied onto the
// record after sanitizing. A message without a From header is rejected.
func Assemble(raw string, flags []string) (*Record, error) {
	head, body := splitHeadBody(raw)

	env, err := ParseRFC822Headers(head)
	if err != nil {
		metrics.MessagesDecoded.WithLabelValues("failure").Inc()
		return nil, fmt.Errorf("%w: %w", consts.ErrMalformedMessage, err)
	}
	header := ParseHeader(head)

	subject := cleanSubject(env.Subject)

	rec := &Record{
		ID:      messageID(header),
		Topic:   subject,
		Mailbox: consts.MailboxInbox,
		Date:    env.Date,
		Subject: subject,
		From:    env.From,
		To:      nonNil(env.To),
		Cc:      nonNil(env.Cc),
		Bcc:     nonNil(env.Bcc),
		Flags:   helpers.SanitizeFlags(flags),
		Raw:     raw,
	}

	if topic, ok := header.Get("thread-topic"); ok {
		rec.Topic = topic.First()
	}
	if parent, ok := header.Get("in-reply-to"); ok {
		rec.Parent = strings.ReplaceAll(parent.First(), `"`, "")
	}
	if ct, ok := header.Get("content-type"); ok {
		rec.HasAttachment = strings.HasPrefix(strings.ToLower(ct.Last()), "multipart/mixed")
	}

	if strings.TrimSpace(body) != "" {
		parts, attachments := DecodeBody(raw)
		if len(parts) == 0 && len(attachments) == 0 {
			parts = Parts{"text/plain": body}
		}
		rec.Body = parts
		rec.Attachments = attachments
	}

	metrics.MessagesDecoded.WithLabelValues("success").Inc()
	return rec, nil
}

func cleanSubject(subject string) string {
	if strings.TrimSpace(subject) == "" {
		subject = consts.NoSubject
	}
	subject = strings.NewReplacer("<", "", ">", "").Replace(strings.TrimSpace(subject))
	subject = DecodeWords(subject)
	return helpers.SanitizeUTF8(strings.ReplaceAll(subject, "â€™", "'"))
}

func messageID(header Header) string {
	if id, ok := header.Get("message-id"); ok && id.First() != "" {
		return strings.ReplaceAll(id.First(), `"`, "")
	}
	return syntheticID()
}

// syntheticID returns a unique placeholder for messages without a
// Message-ID header.
func syntheticID() string {
	seed := uuid.New()
	sum := blake3.Sum256(seed[:])
	return "<no-id-" + hex.EncodeToString(sum[:16]) + ">"
}

func nonNil(list []Address) []Address {
	if list == nil {
		return []Address{}
	}
	return list
}
