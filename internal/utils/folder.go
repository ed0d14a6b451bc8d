package utils

import (
	"strings"
)

// MapFolderName translates the canonical lowercase folder names used by API
// callers into the IMAP names providers expose. Unknown folders pass through
// unchanged. The returned names mirror the models.Folder* constants; they are
// inlined here because models depends on this package.
func MapFolderName(folder string) string {
	switch strings.ToLower(folder) {
	case "inbox":
		return "INBOX"
	case "sent":
		return "Sent"
	case "drafts":
		return "Drafts"
	case "trash":
		return "Trash"
	case "spam":
		return "Spam"
	case "archive":
		return "Archive"
	default:
		return folder
	}
}
