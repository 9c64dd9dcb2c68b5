package mailer

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stroemhansen/yolocam/internal/appconfig"
	"github.com/stroemhansen/yolocam/internal/fsutil"
)

func testEmailConfig() appconfig.Email {
	return appconfig.Email{
		Host:       "smtp.example.com",
		Port:       465,
		Username:   "agent",
		Password:   "secret",
		Subject:    "Decisions export",
		Body:       "Attached is the latest decisions bucket.",
		Sender:     "agent@example.com",
		Recipients: []string{"ops@example.com", "audit@example.com"},
	}
}

func TestBuildMessageCarriesHeadersAndAttachment(t *testing.T) {
	raw, err := buildMessage(testEmailConfig(), "2026-01-01.xlsx", []byte("workbook-bytes"))
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, "From: agent@example.com")
	assert.Contains(t, s, "To: ops@example.com, audit@example.com")
	assert.Contains(t, s, "Subject: Decisions export")
	assert.Contains(t, s, `filename="2026-01-01.xlsx"`)
	assert.Contains(t, s, "Attached is the latest decisions bucket.")
}

func TestBase64EncodeWrapsAt76Columns(t *testing.T) {
	data := make([]byte, 200)
	for i := range data {
		data[i] = byte(i)
	}
	encoded := base64Encode(data)
	for _, line := range strings.Split(strings.TrimRight(string(encoded), "\r\n"), "\r\n") {
		assert.LessOrEqual(t, len(line), 76)
	}
}

func TestEnqueueSpoolsOneMessagePerAttachment(t *testing.T) {
	dir := t.TempDir()
	fs := fsutil.OSFileSystem{}
	attachmentPath := filepath.Join(dir, "2026-01-01.xlsx")
	require.NoError(t, fs.WriteFile(attachmentPath, []byte("workbook-bytes"), 0644))

	spoolDir := filepath.Join(dir, "email")
	require.NoError(t, os.MkdirAll(spoolDir, 0755))
	q := NewQueue(fs, spoolDir)
	require.NoError(t, q.Enqueue(testEmailConfig(), attachmentPath))

	entries, err := fsutil.ListOldestFirst(spoolDir, messageExtension)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestEnqueueSpoolsRenderedMessage(t *testing.T) {
	dir := t.TempDir()
	fs := fsutil.OSFileSystem{}
	attachmentPath := filepath.Join(dir, "2026-01-01.xlsx")
	require.NoError(t, fs.WriteFile(attachmentPath, []byte("workbook-bytes"), 0644))

	spoolDir := filepath.Join(dir, "email")
	require.NoError(t, os.MkdirAll(spoolDir, 0755))
	q := NewQueue(fs, spoolDir)
	require.NoError(t, q.Enqueue(testEmailConfig(), attachmentPath))

	entries, err := fsutil.ListOldestFirst(spoolDir, messageExtension)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	raw, err := fs.ReadFile(entries[0].Path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Subject: Decisions export")
}

func TestJoinCommaFormatsRecipientList(t *testing.T) {
	assert.Equal(t, "a@x.com, b@x.com", joinComma([]string{"a@x.com", "b@x.com"}))
	assert.Equal(t, "", joinComma(nil))
}
