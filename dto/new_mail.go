package dto

// NewMail is the payload of the new_mail event emitted when a watched folder
// reports activity.
type NewMail struct {
	AccountID string `json:"accountId"`
	Folder    string `json:"folder"`
}
