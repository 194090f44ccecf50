package models

// RecipientContact is the contact data of a notification recipient.
type RecipientContact struct {
	UserID string `json:"userId"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Phone  string `json:"phone"`
}
