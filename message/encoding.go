package message

import (
	"bytes"
	"encoding/base64"
	"io"
	"mime/quotedprintable"
	"strings"

	"github.com/emersion/go-message/charset"
	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Transfer encodings understood by DecodeTransfer.
const (
	EncodingBase64          = "base64"
	EncodingQuotedPrintable = "quoted-printable"
	EncodingBinary          = "binary"
	Encoding7Bit            = "7bit"
)

// DecodeTransfer undoes a Content-Transfer-Encoding. Unknown encodings
// (including 8bit) only have their newlines and spaces removed.
func DecodeTransfer(encoding string, body string) []byte {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case EncodingBase64:
		return decodeBase64(body)
	case EncodingQuotedPrintable:
		return decodeQuotedPrintable(body)
	case EncodingBinary:
		return []byte(body)
	case Encoding7Bit:
		return decodeISO2022JP(body)
	default:
		return []byte(strings.NewReplacer("\n", "", " ", "").Replace(body))
	}
}

// decodeBase64 ignores characters outside the base64 alphabet, line breaks
// included, and tolerates missing padding.
func decodeBase64(body string) []byte {
	clean := make([]byte, 0, len(body))
	for i := 0; i < len(body); i++ {
		c := body[i]
		if (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '+' || c == '/' {
			clean = append(clean, c)
		}
	}
	// Trailing bits that do not form a whole byte are dropped.
	if len(clean)%4 == 1 {
		clean = clean[:len(clean)-1]
	}
	out := make([]byte, base64.RawStdEncoding.DecodedLen(len(clean)))
	n, _ := base64.RawStdEncoding.Decode(out, clean)
	return out[:n]
}

func decodeQuotedPrintable(body string) []byte {
	out, err := io.ReadAll(quotedprintable.NewReader(strings.NewReader(body)))
	if err != nil && len(out) == 0 {
		return []byte(body)
	}
	return out
}

// decodeISO2022JP converts 7bit content assuming ISO-2022-JP, which is a
// superset of US-ASCII, so plain ASCII bodies pass through unchanged.
func decodeISO2022JP(body string) []byte {
	out, _, err := transform.Bytes(japanese.ISO2022JP.NewDecoder(), []byte(body))
	if err != nil {
		return []byte(body)
	}
	return out
}

// toUTF8 converts text in the named charset to UTF-8. Unknown charsets leave
// the input untouched.
func toUTF8(label string, data []byte) []byte {
	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" || label == "us-ascii" {
		return data
	}
	r, err := charset.Reader(label, bytes.NewReader(data))
	if err != nil {
		return data
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return data
	}
	return out
}
