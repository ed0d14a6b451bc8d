package models

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/utils"
)

type Account struct {
	ID       string             `gorm:"column:id;type:varchar(50);primaryKey" json:"id"`
	Email    string             `gorm:"column:email;type:varchar(255);uniqueIndex;not null" json:"email"`
	Provider enum.EmailProvider `gorm:"column:provider;type:varchar(50);index;not null" json:"provider"`
	AuthKind enum.AuthKind      `gorm:"column:auth_kind;type:varchar(50);not null" json:"authKind"`
	// IMAP Configuration
	ImapHost string `gorm:"column:imap_host;type:varchar(255);not null" json:"imapHost"`
	ImapPort int    `gorm:"column:imap_port;not null" json:"imapPort"`
	// SMTP Configuration
	SmtpHost string `gorm:"column:smtp_host;type:varchar(255);not null" json:"smtpHost"`
	SmtpPort int    `gorm:"column:smtp_port;not null" json:"smtpPort"`
	// Other Configuration
	Security    enum.EmailSecurity `gorm:"column:security;type:varchar(50);not null;default:tls" json:"security"`
	Folders     pq.StringArray     `gorm:"column:folders;type:text[]" json:"folders"`
	DisplayName string             `gorm:"column:display_name;type:varchar(255)" json:"displayName"`
	// Exactly one account has active set at any time, enforced by the repository
	Active bool `gorm:"column:active;index;not null;default:false" json:"active"`
	// Standard timestamps
	CreatedAt time.Time      `gorm:"column:created_at;type:timestamp;default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time      `gorm:"column:updated_at;type:timestamp;default:current_timestamp" json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"column:deleted_at;index" json:"-"`
}

// TableName sets the table name
func (Account) TableName() string {
	return "accounts"
}

func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = utils.GenerateNanoIdWithPrefix("acct", 16)
	}
	return nil
}

func (a *Account) ImapAddr() string {
	return fmt.Sprintf("%s:%d", a.ImapHost, a.ImapPort)
}

func (a *Account) SmtpAddr() string {
	return fmt.Sprintf("%s:%d", a.SmtpHost, a.SmtpPort)
}

// MonitoredFolders returns the folders watched for this account. The set is
// fixed at start time, not discovered from the server.
func (a *Account) MonitoredFolders() []string {
	if len(a.Folders) > 0 {
		return a.Folders
	}
	return DefaultMonitoredFolders()
}
