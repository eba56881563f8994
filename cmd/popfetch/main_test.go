package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/migadu/popfetch/client/pop3"
	"github.com/migadu/popfetch/message"
	"github.com/migadu/popfetch/testutils"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "popfetch.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestCommonFlags_Overrides(t *testing.T) {
	path := writeConfig(t, `
[account]
host = "pop.example.com"
username = "john"
password = "from-file"
ssl = true

[fetch]
range = 5
`)

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := addCommonFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-user", "jane", "-insecure", "-debug"}))

	cfg, err := common.load()
	require.NoError(t, err)

	assert.Equal(t, "pop.example.com", cfg.Account.Host)
	assert.Equal(t, "jane", cfg.Account.Username)
	assert.Equal(t, "from-file", cfg.Account.Password)
	assert.True(t, cfg.Account.SSL)
	assert.False(t, cfg.Account.TLSVerify)
	assert.True(t, cfg.Account.Debug)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5, cfg.Fetch.Range)

	opts, err := clientOptions(cfg)
	require.NoError(t, err)
	assert.Equal(t, 995, opts.Port)
	assert.True(t, opts.UseSSL)
	assert.True(t, opts.InsecureSkipVerify)
}

func TestCommonFlags_PasswordFromEnv(t *testing.T) {
	t.Setenv(passwordEnv, "from-env")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := addCommonFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", filepath.Join(t.TempDir(), "absent.toml"), "-host", "h", "-user", "u"}))

	_, err := common.load()
	require.Error(t, err, "an explicitly named config file must exist")

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	common = addCommonFlags(fs)
	*common.configPath = filepath.Join(t.TempDir(), "absent.toml")
	require.NoError(t, fs.Parse([]string{"-host", "h", "-user", "u"}))

	cfg, err := common.load()
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Account.Password)
}

func TestCommonFlags_Invalid(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	common := addCommonFlags(fs)
	*common.configPath = filepath.Join(t.TempDir(), "absent.toml")
	require.NoError(t, fs.Parse([]string{"-host", "h", "-user", "u", "-ssl", "-tls"}))

	_, err := common.load()
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestParseIDs(t *testing.T) {
	ids, err := parseIDs([]string{"3", "1"})
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, ids)

	_, err = parseIDs(nil)
	assert.Error(t, err)
	_, err = parseIDs([]string{"0"})
	assert.Error(t, err)
	_, err = parseIDs([]string{"x"})
	assert.Error(t, err)
}

func TestWriteMessages(t *testing.T) {
	rec := &message.Record{
		ID:      "<a@b>",
		Subject: "hi",
		Body:    message.Parts{"text/html": "<p>Hello <b>there</b></p>"},
		Raw:     "raw text",
	}
	msgs := []pop3.Message{
		{Index: 1, Record: rec},
		{Index: 2, Err: assert.AnError},
	}

	var buf bytes.Buffer
	require.NoError(t, writeMessages(&buf, msgs, false))

	var out []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "hi", out[0]["message"].(map[string]any)["subject"])
	assert.Equal(t, "", out[0]["message"].(map[string]any)["raw"])
	assert.Equal(t, "Hello there", strings.TrimSpace(out[0]["text"].(string)))
	assert.Equal(t, assert.AnError.Error(), out[1]["error"])
	assert.NotContains(t, out[1], "text")
	assert.Equal(t, "raw text", rec.Raw, "the record itself is not modified")
}

func TestWritePartial(t *testing.T) {
	msgs := []pop3.Message{{Index: 1, Record: &message.Record{Subject: "kept"}}}

	var buf bytes.Buffer
	err := writePartial(&buf, msgs, false, assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, buf.String(), `"kept"`)

	buf.Reset()
	err = writePartial(&buf, nil, false, assert.AnError)
	assert.ErrorIs(t, err, assert.AnError)
	assert.Empty(t, buf.String())

	buf.Reset()
	require.NoError(t, writePartial(&buf, nil, false, nil))
	assert.Equal(t, "[]\n", buf.String())
}

func TestRun_CountAndRemove(t *testing.T) {
	srv := testutils.StartPOP3Server(t, testutils.POP3ServerConfig{
		Users: map[string]string{"john": "secret"},
		Messages: []string{
			"From: a@example.com\r\n\r\none\r\n",
			"From: b@example.com\r\n\r\ntwo\r\n",
		},
	})
	path := writeConfig(t, `
[logging]
level = "error"

[account]
host = "`+srv.Host()+`"
port = `+strconv.Itoa(srv.Port())+`
username = "john"
password = "secret"
`)

	var out bytes.Buffer
	require.NoError(t, run(context.Background(), "count", []string{"-config", path}, &out))
	assert.Equal(t, "2\n", out.String())

	out.Reset()
	require.NoError(t, run(context.Background(), "check", []string{"-config", path}, &out))
	assert.Contains(t, out.String(), "OK ")

	out.Reset()
	err := run(context.Background(), "remove", []string{"-config", path, "2", "5"}, &out)
	assert.ErrorContains(t, err, "1 of 2 deletions failed")
	assert.Equal(t, "2 deleted\n5 failed\n", out.String())
	assert.True(t, srv.Deleted(2))

	out.Reset()
	require.NoError(t, run(context.Background(), "list", []string{"-config", path, "-range", "1"}, &out))
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 1)

	assert.Error(t, run(context.Background(), "bogus", nil, &out))
}
