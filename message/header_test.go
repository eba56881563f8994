package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHeader_Folding(t *testing.T) {
	h := ParseHeader("Subject: Hello\n  World")

	v, ok := h.Get("subject")
	require.True(t, ok)
	assert.False(t, v.Multiple())
	assert.Equal(t, "Hello World", v.First())
}

func TestParseHeader_RepeatedFieldsAccumulate(t *testing.T) {
	block := "Received: from a\r\n" +
		"Received: from b\r\n" +
		"\tby c\r\n" +
		"X-Mailer: test"

	h := ParseHeader(block)

	v, ok := h.Get("Received")
	require.True(t, ok)
	assert.True(t, v.Multiple())
	assert.Equal(t, []string{"from a", "from b by c"}, v.Values())
	assert.Equal(t, "from b by c", v.Last())
	assert.Equal(t, []string{"received", "x-mailer"}, h.Keys())
	assert.Equal(t, 2, h.Len())
}

func TestParseHeader_LowercasesKeys(t *testing.T) {
	h := ParseHeader("Content-Type: text/plain\nMESSAGE-ID: <a@b>")

	assert.True(t, h.Has("content-type"))
	assert.True(t, h.Has("Message-Id"))
	assert.False(t, h.Has("subject"))

	_, ok := Header{}.Get("subject")
	assert.False(t, ok)
}

func TestSplitHeadBody(t *testing.T) {
	tests := []struct {
		name string
		in   string
		head string
		body string
	}{
		{"lf", "A: 1\n\nbody", "A: 1", "body"},
		{"crlf", "A: 1\r\n\r\nbody\r\n", "A: 1\r", "body\r\n"},
		{"whitespace line", "A: 1\n \t\nbody", "A: 1", "body"},
		{"no body", "A: 1\nB: 2", "A: 1\nB: 2", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			head, body := splitHeadBody(tt.in)
			assert.Equal(t, tt.head, head)
			assert.Equal(t, tt.body, body)
		})
	}
}
