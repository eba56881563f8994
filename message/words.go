package message

import (
	"mime"
	"regexp"
	"strings"

	"github.com/emersion/go-message/charset"
)

var encodedWordPattern = regexp.MustCompile(`^=\?[a-zA-Z]+-[0-9]+.*\?`)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

// IsEncodedWord reports whether s starts with an RFC 2047 encoded word whose
// charset has a numbered variant, like =?utf-8?..., =?iso-8859-1?...
func IsEncodedWord(s string) bool {
	return encodedWordPattern.MatchString(strings.ToLower(strings.TrimSpace(s)))
}

// DecodeWords decodes RFC 2047 encoded words in s and turns underscores into
// spaces. Values without encoded words are returned unchanged. Undecodable
// input is returned as-is.
func DecodeWords(s string) string {
	if !IsEncodedWord(s) {
		return s
	}
	decoded, err := wordDecoder.DecodeHeader(s)
	if err != nil {
		return s
	}
	return strings.ReplaceAll(decoded, "_", " ")
}
