package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapFolderName(t *testing.T) {
	assert.Equal(t, "INBOX", MapFolderName("inbox"))
	assert.Equal(t, "INBOX", MapFolderName("Inbox"))
	assert.Equal(t, "Sent", MapFolderName("sent"))
	assert.Equal(t, "Drafts", MapFolderName("DRAFTS"))
	assert.Equal(t, "Trash", MapFolderName("trash"))
	assert.Equal(t, "Spam", MapFolderName("spam"))
	assert.Equal(t, "Archive", MapFolderName("archive"))
	// Unknown folders pass through untouched
	assert.Equal(t, "[Gmail]/All Mail", MapFolderName("[Gmail]/All Mail"))
}
