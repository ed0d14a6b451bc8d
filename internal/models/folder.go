package models

import "time"

// Standard IMAP folder names as most providers expose them.
const (
	FolderInbox   = "INBOX"
	FolderSent    = "Sent"
	FolderDrafts  = "Drafts"
	FolderTrash   = "Trash"
	FolderSpam    = "Spam"
	FolderArchive = "Archive"
)

// DefaultMonitoredFolders returns the folder set watched for new mail when an
// account does not configure its own.
func DefaultMonitoredFolders() []string {
	return []string{FolderInbox, FolderSent, FolderDrafts, FolderTrash, FolderSpam}
}

type FolderStats struct {
	Folder   string     `json:"folder"`
	Total    uint32     `json:"total"`
	Unseen   uint32     `json:"unseen"`
	LastSync *time.Time `json:"lastSync,omitempty"`
}
