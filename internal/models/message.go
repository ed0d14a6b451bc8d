package models

import "time"

// EmailSummary is the envelope-level view returned by folder listings.
type EmailSummary struct {
	Ref         string     `json:"ref"`
	Uid         uint32     `json:"uid"`
	Folder      string     `json:"folder"`
	Subject     string     `json:"subject"`
	FromAddress string     `json:"fromAddress"`
	FromName    string     `json:"fromName"`
	ToAddresses []string   `json:"toAddresses"`
	SentAt      *time.Time `json:"sentAt"`
	Seen        bool       `json:"seen"`
	Flagged     bool       `json:"flagged"`
	Snippet     string     `json:"snippet,omitempty"`
}

// EmailMessage is a fully fetched message with its MIME parts decoded.
type EmailMessage struct {
	Ref         string       `json:"ref"`
	Uid         uint32       `json:"uid"`
	Folder      string       `json:"folder"`
	MessageID   string       `json:"messageId"`
	Subject     string       `json:"subject"`
	FromAddress string       `json:"fromAddress"`
	FromName    string       `json:"fromName"`
	ToAddresses []string     `json:"toAddresses"`
	CcAddresses []string     `json:"ccAddresses"`
	SentAt      *time.Time   `json:"sentAt"`
	Seen        bool         `json:"seen"`
	Flagged     bool         `json:"flagged"`
	BodyText    string       `json:"bodyText"`
	BodyHTML    string       `json:"bodyHtml"`
	Attachments []Attachment `json:"attachments"`
}

type Attachment struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	Size        int    `json:"size"`
}

// OutgoingEmail is a message to be sent through the active account.
type OutgoingEmail struct {
	FromAddress  string   `json:"fromAddress"`
	FromName     string   `json:"fromName"`
	ToAddresses  []string `json:"toAddresses"`
	CcAddresses  []string `json:"ccAddresses"`
	BccAddresses []string `json:"bccAddresses"`
	Subject      string   `json:"subject"`
	BodyText     string   `json:"bodyText"`
	BodyHTML     string   `json:"bodyHtml,omitempty"`
}
