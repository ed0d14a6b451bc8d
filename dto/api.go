package dto

// SendEmailRequest is the body of POST /v1/emails.
type SendEmailRequest struct {
	To       []string `json:"to" binding:"required,min=1"`
	Cc       []string `json:"cc"`
	Bcc      []string `json:"bcc"`
	Subject  string   `json:"subject"`
	Body     string   `json:"body"`
	BodyHTML string   `json:"bodyHtml"`
}

type FlagRequest struct {
	Flags []string `json:"flags" binding:"required,min=1"`
	Set   bool     `json:"set"`
}

type MoveRequest struct {
	Destination string `json:"destination" binding:"required"`
}

type CreateAccountRequest struct {
	Email       string   `json:"email" binding:"required,email"`
	Provider    string   `json:"provider" binding:"required"`
	AuthKind    string   `json:"authKind" binding:"required"`
	ImapHost    string   `json:"imapHost" binding:"required"`
	ImapPort    int      `json:"imapPort" binding:"required"`
	SmtpHost    string   `json:"smtpHost" binding:"required"`
	SmtpPort    int      `json:"smtpPort" binding:"required"`
	Security    string   `json:"security"`
	Folders     []string `json:"folders"`
	DisplayName string   `json:"displayName"`
	// Initial secret material, stored in the credential store, never in the DB.
	Password     string `json:"password"`
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresAt    string `json:"expiresAt"`
}
