package domain

import "time"

// AuthorType indicates who authored a comment.
type AuthorType string

const (
	AuthorTypeAdmin    AuthorType = "admin"
	AuthorTypeCustomer AuthorType = "customer"
	AuthorTypeSystem   AuthorType = "system"
	AuthorTypeAI       AuthorType = "ai"
)

// Valid reports whether a is a known author type.
func (a AuthorType) Valid() bool {
	switch a {
	case AuthorTypeAdmin, AuthorTypeCustomer, AuthorTypeSystem, AuthorTypeAI:
		return true
	}
	return false
}

// Comment captures one entry in a ticket thread. Comments only exist inside
// their parent ticket and are never removed or reordered.
type Comment struct {
	ID          string     `json:"id"`
	Author      string     `json:"author"`
	AuthorType  AuthorType `json:"authorType"`
	Content     string     `json:"content"`
	Timestamp   time.Time  `json:"timestamp"`
	IsInternal  bool       `json:"isInternal"`
	Attachments []string   `json:"attachments,omitempty"`
}
