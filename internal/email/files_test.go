package email

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileMailbox(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "first.eml")
	second := filepath.Join(dir, "second.eml")
	require.NoError(t, os.WriteFile(first, []byte("Subject: one\r\n\r\nfirst"), 0o600))
	require.NoError(t, os.WriteFile(second, []byte("Subject: two\r\n\r\nsecond"), 0o600))

	var mailbox Mailbox = NewFileMailbox(first, second)
	ctx := context.Background()
	require.NoError(t, mailbox.Connect(ctx))
	require.NoError(t, mailbox.Select(ctx, "INBOX"))

	seqNums, err := mailbox.Search(ctx, `(FROM "dhl")`)
	require.NoError(t, err)
	assert.Equal(t, []uint32{1, 2}, seqNums)

	raw, err := mailbox.Fetch(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "second", ExtractBody(raw))

	_, err = mailbox.Fetch(ctx, 3)
	assert.Error(t, err)
	_, err = mailbox.Fetch(ctx, 0)
	assert.Error(t, err)

	assert.NoError(t, mailbox.Logout(ctx))
}

func TestFileMailbox_MissingFile(t *testing.T) {
	mailbox := NewFileMailbox(filepath.Join(t.TempDir(), "missing.eml"))
	_, err := mailbox.Fetch(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
