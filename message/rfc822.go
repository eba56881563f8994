package message

import (
	"html"
	"net/mail"
	"regexp"
	"strings"
	"time"

	"github.com/migadu/popfetch/consts"
	"github.com/migadu/popfetch/helpers"
)

// Address is one decoded mailbox from an address header.
type Address struct {
	Name    string `json:"name,omitempty"`
	Mailbox string `json:"mailbox"`
	Host    string `json:"host"`
}

// Email returns mailbox@host. A missing host yields the bare mailbox.
func (a Address) Email() string {
	if a.Host == "" {
		return a.Mailbox
	}
	return a.Mailbox + "@" + a.Host
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Email()
	}
	return a.Name + " <" + a.Email() + ">"
}

// Envelope is the subset of an RFC 822 header block the assembler needs.
type Envelope struct {
	MessageID string
	From      Address
	To        []Address
	Cc        []Address
	Bcc       []Address
	Subject   string
	Date      *time.Time
}

var (
	messageIDPattern = regexp.MustCompile(`(?im)^Message-ID:[ \t]*([^\n]*)`)
	fromPattern      = regexp.MustCompile(`(?im)^From:[ \t]*([^\n]*)`)
	toPattern        = regexp.MustCompile(`(?im)^To:[ \t]*([^\n]*)`)
	ccPattern        = regexp.MustCompile(`(?im)^Cc:[ \t]*([^\n]*)`)
	bccPattern       = regexp.MustCompile(`(?im)^Bcc:[ \t]*([^\n]*)`)
	subjectPattern   = regexp.MustCompile(`(?im)^Subject:[ \t]*([^\n]*)`)
	datePattern      = regexp.MustCompile(`(?im)^Date:[ \t]*([^\n]*)`)

	angledAddressPattern = regexp.MustCompile(`^([^<]*)<([^>]*)>`)
	dateCommentPattern   = regexp.MustCompile(`\(.*\)`)
)

// ParseRFC822Headers extracts the envelope fields from a raw header block.
// Continuation lines are unfolded first. A block without a From field is
// rejected with consts.ErrMissingFrom.
func ParseRFC822Headers(block string) (*Envelope, error) {
	escaped := html.EscapeString(unfold(block))

	env := &Envelope{}

	from, ok := matchField(fromPattern, escaped)
	if !ok || from == "" {
		return nil, consts.ErrMissingFrom
	}
	env.From = DecodeMailbox(from)

	if id, ok := matchField(messageIDPattern, escaped); ok {
		env.MessageID = id
	}
	if to, ok := matchField(toPattern, escaped); ok {
		env.To = decodeAddressList(to)
	}
	if cc, ok := matchField(ccPattern, escaped); ok {
		env.Cc = decodeAddressList(cc)
	}
	if bcc, ok := matchField(bccPattern, escaped); ok {
		env.Bcc = decodeAddressList(bcc)
	}
	if subject, ok := matchField(subjectPattern, escaped); ok {
		env.Subject = subject
	}
	if date, ok := matchField(datePattern, escaped); ok {
		if t, err := ParseDate(date); err == nil {
			env.Date = &t
		}
	}

	return env, nil
}

// matchField returns the unescaped, trimmed value of the first field matched
// by pattern.
func matchField(pattern *regexp.Regexp, escaped string) (string, bool) {
	m := pattern.FindStringSubmatch(escaped)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(html.UnescapeString(m[1])), true
}

// DecodeMailbox decodes a single address. "Name <local@host>" yields the
// name before the angle bracket; a bare address has no name. The address is
// split on its first '@' and missing parts are empty strings.
func DecodeMailbox(raw string) Address {
	raw = strings.TrimSpace(html.UnescapeString(raw))

	var name, addr string
	if m := angledAddressPattern.FindStringSubmatch(raw); m != nil {
		name = strings.Trim(strings.TrimSpace(m[1]), `"'`)
		addr = strings.TrimSpace(m[2])
	} else if i := strings.IndexByte(raw, '<'); i >= 0 {
		// Unterminated angle bracket.
		name = strings.Trim(strings.TrimSpace(raw[:i]), `"'`)
		addr = strings.TrimSpace(raw[i+1:])
	} else {
		addr = raw
	}

	if IsEncodedWord(name) {
		name = DecodeWords(name)
	}

	mailbox, host := helpers.SplitEmailAddress(addr)
	return Address{Name: name, Mailbox: mailbox, Host: host}
}

func decodeAddressList(value string) []Address {
	var out []Address
	for _, item := range SplitAddressList(value) {
		out = append(out, DecodeMailbox(item))
	}
	return out
}

// SplitAddressList splits a comma-separated address header into items.
// Commas inside quotes or angle brackets do not split. Empty items are
// dropped.
func SplitAddressList(value string) []string {
	var (
		items   []string
		current strings.Builder
		quoted  bool
		angled  bool
	)
	flush := func() {
		if item := strings.TrimSpace(current.String()); item != "" {
			items = append(items, item)
		}
		current.Reset()
	}

	for _, r := range value {
		switch {
		case r == '"':
			quoted = !quoted
		case r == '<' && !quoted:
			angled = true
		case r == '>' && !quoted:
			angled = false
		case r == ',' && !quoted && !angled:
			flush()
			continue
		}
		current.WriteRune(r)
	}
	flush()

	return items
}

var dateLayouts = []string{
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	time.RFC3339,
}

// ParseDate parses a Date header value after removing parenthetical
// comments such as "(UTC)".
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(dateCommentPattern.ReplaceAllString(value, ""))
	if t, err := mail.ParseDate(value); err == nil {
		return t, nil
	}

	var lastErr error
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, value)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
