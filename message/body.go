package message

import (
	"strings"

	gomessage "github.com/emersion/go-message"

	"github.com/migadu/popfetch/pkg/metrics"
)

// maxPartDepth bounds multipart nesting.
const maxPartDepth = 32

// Parts maps a content type to its decoded inline content.
type Parts map[string]string

// Attachment is a named MIME leaf part.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"content_type"`
	Data        []byte `json:"data"`
}

// ContentType is a parsed Content-Type or Content-Disposition value.
type ContentType struct {
	Type   string
	Params map[string]string
}

// ParseContentType splits a Content-Type value into its lowercased media type
// and parameters, decoding RFC 2231 and RFC 2047 parameter values. Values
// the MIME grammar rejects are split leniently instead.
func ParseContentType(value string) ContentType {
	var h gomessage.Header
	h.Set("Content-Type", value)
	if t, params, err := h.ContentType(); err == nil {
		return ContentType{Type: t, Params: params}
	}
	return parseParamsLenient(value)
}

// ParseContentDisposition is ParseContentType for Content-Disposition.
func ParseContentDisposition(value string) ContentType {
	var h gomessage.Header
	h.Set("Content-Disposition", value)
	if disp, params, err := h.ContentDisposition(); err == nil {
		return ContentType{Type: disp, Params: params}
	}
	return parseParamsLenient(value)
}

// parseParamsLenient splits on semicolons outside double quotes, lowercases
// names, drops attributes without a value and strips quotes from values.
func parseParamsLenient(value string) ContentType {
	ct := ContentType{Params: make(map[string]string)}

	attrs := splitParams(value)
	ct.Type = strings.ToLower(strings.TrimSpace(attrs[0]))

	for _, attr := range attrs[1:] {
		key, val, ok := strings.Cut(strings.TrimSpace(attr), "=")
		if !ok {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		val = strings.Trim(strings.TrimSpace(val), `"'`)
		if key != "" {
			ct.Params[key] = val
		}
	}

	return ct
}

func splitParams(value string) []string {
	var (
		out    []string
		quoted bool
		from   int
	)
	for i := 0; i < len(value); i++ {
		switch value[i] {
		case '"':
			quoted = !quoted
		case ';':
			if !quoted {
				out = append(out, value[from:i])
				from = i + 1
			}
		}
	}
	return append(out, value[from:])
}

// DecodeBody decodes a raw MIME entity (header block, blank line, body).
// Multipart containers are expanded recursively. Leaf parts are transfer
// decoded and filed either as inline parts keyed by content type or, when
// they carry a name, as attachments. An entity without a Content-Type
// contributes nothing.
func DecodeBody(content string) (Parts, []Attachment) {
	d := &bodyDecoder{parts: make(Parts)}
	d.decode(content, 0)
	return d.parts, d.attachments
}

type bodyDecoder struct {
	parts       Parts
	attachments []Attachment
}

func (d *bodyDecoder) decode(content string, depth int) {
	if depth > maxPartDepth {
		return
	}

	head, body := splitHeadBody(content)
	header := ParseHeader(head)

	value, ok := header.Get("content-type")
	if !ok {
		return
	}
	ct := ParseContentType(value.Last())

	if boundary := ct.Params["boundary"]; boundary != "" {
		for _, section := range splitSections(body, boundary) {
			d.decode(section, depth+1)
		}
		return
	}

	encoding := ""
	if enc, ok := header.Get("content-transfer-encoding"); ok {
		encoding = strings.ToLower(strings.TrimSpace(enc.Last()))
	}

	data := []byte(body)
	if encoding != "" {
		data = DecodeTransfer(encoding, body)
	}

	name := attachmentName(ct, header)
	if name != "" {
		d.addAttachment(Attachment{Name: name, ContentType: ct.Type, Data: data})
		return
	}

	if cs := ct.Params["charset"]; cs != "" && encoding != Encoding7Bit && strings.HasPrefix(ct.Type, "text/") {
		data = toUTF8(cs, data)
	}
	d.parts[ct.Type] = string(data)
}

// addAttachment files a, replacing an earlier attachment with the same name
// and content type.
func (d *bodyDecoder) addAttachment(a Attachment) {
	metrics.AttachmentsDecoded.Inc()
	for i, existing := range d.attachments {
		if existing.Name == a.Name && existing.ContentType == a.ContentType {
			d.attachments[i] = a
			return
		}
	}
	d.attachments = append(d.attachments, a)
}

// attachmentName returns the Content-Type name parameter, falling back to
// the Content-Disposition filename.
func attachmentName(ct ContentType, header Header) string {
	name := ct.Params["name"]
	if name == "" {
		if disp, ok := header.Get("content-disposition"); ok {
			name = ParseContentDisposition(disp.Last()).Params["filename"]
		}
	}
	return DecodeWords(name)
}

// splitSections splits a multipart body on its boundary and drops the
// preamble before the first delimiter and the epilogue after the last.
func splitSections(body, boundary string) []string {
	boundary = strings.Trim(boundary, `"'`)
	sections := strings.Split(body, "--"+boundary)
	if len(sections) < 3 {
		return nil
	}
	sections = sections[1 : len(sections)-1]
	for i, s := range sections {
		sections[i] = strings.TrimLeft(s, "\r\n")
	}
	return sections
}
