package types

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

type ItemID = uuid.UUID

type TierRef struct {
	Id   int    `json:"id"`
	Name string `json:"name"`
}

type Identity struct {
	Id        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Token     string    `json:"-"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}

type Profile struct {
	UserId   uuid.UUID `json:"user_id"`
	Name     string    `json:"name,omitempty"`
	FullName string    `json:"full_name,omitempty"`
}

// DisplayName returns the first word of the best available name,
// capitalized. Falls back to the local part of the email address.
func (p Profile) DisplayName(email string) string {
	name := p.FullName
	if name == "" {
		name = p.Name
	}
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	first, _, _ := strings.Cut(strings.TrimSpace(name), " ")
	if first == "" {
		return ""
	}
	return strings.ToUpper(first[:1]) + strings.ToLower(first[1:])
}

type ContentItem struct {
	Id          uuid.UUID `json:"id"`
	TierId      int       `json:"tier_id"`
	OrderIndex  int       `json:"order_index"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	MediaURL    string    `json:"media_url"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type FileItem struct {
	Id          uuid.UUID `json:"id"`
	TierId      int       `json:"tier_id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	FileURL     string    `json:"file_url"`
	CreatedAt   time.Time `json:"created_at,omitempty"`
}

type CompletionRecord struct {
	UserId      uuid.UUID `json:"user_id"`
	ItemId      uuid.UUID `json:"item_id"`
	Completed   bool      `json:"completed"`
	CompletedAt time.Time `json:"completed_at"`
}

type ChatMessage struct {
	Id         uuid.UUID `json:"id"`
	ExternalId string    `json:"external_id,omitempty"`
	AuthorId   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author_name,omitempty"`
	Body       string    `json:"body"`
	CreatedAt  time.Time `json:"created_at"`
}
