// Package data holds the chat model and the stores that read and mutate it.
package data

import (
	"fmt"
	"strings"
	"time"

	"github.com/PaulBabatuyi/supportChat-gRPC/internal/normalize"
)

// LastMessageExcerptLen caps the last-message snapshot shown in chat lists.
const LastMessageExcerptLen = 100

// Role identifies who sent a message or who is reading a chat.
type Role string

const (
	RoleCustomer  Role = "CUSTOMER"
	RoleTechnical Role = "TECHNICAL"
	RoleFinancial Role = "FINANCIAL"
	RoleBooking   Role = "BOOKING"
	RoleAdmin     Role = "ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleTechnical, RoleFinancial, RoleBooking, RoleAdmin:
		return true
	}
	return false
}

// Group returns the read-group r belongs to. Every non-customer role is staff.
func (r Role) Group() ReadGroup {
	if r == RoleCustomer {
		return GroupCustomer
	}
	return GroupStaff
}

// ParseRole accepts any casing and surrounding whitespace.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
	return r, nil
}

// ReadGroup is the set of roles that share one unread perspective.
type ReadGroup int

const (
	GroupCustomer ReadGroup = iota
	GroupStaff
)

// Opposite returns the group that receives messages sent by g.
func (g ReadGroup) Opposite() ReadGroup {
	if g == GroupCustomer {
		return GroupStaff
	}
	return GroupCustomer
}

func (g ReadGroup) String() string {
	if g == GroupCustomer {
		return "customer"
	}
	return "staff"
}

// incoming reports whether a message from sender is unread-worthy for viewer.
func (g ReadGroup) incoming(sender Role) bool {
	return sender.Group() != g
}

// Category partitions chats and staff dashboards.
type Category string

const (
	CategoryTechnical Category = "TECHNICAL"
	CategoryFinancial Category = "FINANCIAL"
	CategoryBooking   Category = "BOOKING"

	// CategoryAll is only meaningful as a list filter.
	CategoryAll Category = "ALL"
)

// Categories lists the fixed chat categories.
var Categories = []Category{CategoryTechnical, CategoryFinancial, CategoryBooking}

// Valid reports whether c is a real chat category. CategoryAll is not.
func (c Category) Valid() bool {
	switch c {
	case CategoryTechnical, CategoryFinancial, CategoryBooking:
		return true
	}
	return false
}

// Title returns the display form, e.g. "Technical".
func (c Category) Title() string {
	s := strings.ToLower(string(c))
	if s == "" {
		return ""
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// matches reports whether a chat in category chat passes the filter c.
func (c Category) matches(chat Category) bool {
	return c == "" || c == CategoryAll || c == chat
}

// ParseCategory accepts any casing; "ALL" is returned as CategoryAll.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	if c == CategoryAll || c.Valid() {
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidCategory, s)
}

// Status is a chat's lifecycle state.
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusClosed Status = "CLOSED"
)

// Message is immutable once appended, except for Read.
type Message struct {
	ID         string    `json:"id" yaml:"id"`
	ChatID     string    `json:"chat_id" yaml:"chat_id"`
	Sender     Role      `json:"sender" yaml:"sender"`
	SenderName string    `json:"sender_name" yaml:"sender_name"`
	Content    string    `json:"content" yaml:"content"`
	Timestamp  time.Time `json:"timestamp" yaml:"timestamp"`
	Read       bool      `json:"read" yaml:"read"`
	Category   Category  `json:"category" yaml:"category"` // always the owning chat's category
}

// Chat is one conversation thread for a (conversation key, category) pair.
type Chat struct {
	ID              string    `json:"id" yaml:"id"`
	ConversationKey string    `json:"conversation_key" yaml:"conversation_key"` // booking code
	Subject         string    `json:"subject" yaml:"subject"`                   // vessel label
	CustomerName    string    `json:"customer_name" yaml:"customer_name"`
	Messages        []Message `json:"messages" yaml:"messages"`
	CreatedAt       time.Time `json:"created_at" yaml:"created_at"`
	LastActivity    time.Time `json:"last_activity" yaml:"last_activity"`
	Status          Status    `json:"status" yaml:"status"`
	Category        Category  `json:"category" yaml:"category"`

	// Derived on every read for the reading group; the persisted values are
	// only a snapshot and are never trusted.
	UnreadCount   int        `json:"unread_count" yaml:"unread_count"`
	LastMessage   string     `json:"last_message,omitempty" yaml:"last_message,omitempty"`
	LastMessageAt *time.Time `json:"last_message_at,omitempty" yaml:"last_message_at,omitempty"`
}

// UnreadFor counts unread messages that are incoming for viewer's group.
func (c *Chat) UnreadFor(viewer ReadGroup) int {
	n := 0
	for i := range c.Messages {
		if !c.Messages[i].Read && viewer.incoming(c.Messages[i].Sender) {
			n++
		}
	}
	return n
}

// refresh recomputes the derived fields as seen by viewer.
func (c *Chat) refresh(viewer ReadGroup) {
	c.UnreadCount = c.UnreadFor(viewer)
	if len(c.Messages) == 0 {
		c.LastMessage = ""
		c.LastMessageAt = nil
		return
	}
	last := c.Messages[len(c.Messages)-1]
	c.LastMessage = normalize.Excerpt(last.Content, LastMessageExcerptLen)
	ts := last.Timestamp
	c.LastMessageAt = &ts
}

func (c Chat) clone() Chat {
	c.Messages = append([]Message(nil), c.Messages...)
	if c.Messages == nil {
		c.Messages = []Message{}
	}
	if c.LastMessageAt != nil {
		ts := *c.LastMessageAt
		c.LastMessageAt = &ts
	}
	return c
}

// Collection is the whole persisted state: every chat in insertion order.
type Collection []Chat

// Clone returns a deep copy safe to hand to another goroutine.
func (c Collection) Clone() Collection {
	out := make(Collection, len(c))
	for i := range c {
		out[i] = c[i].clone()
	}
	return out
}

func (c Collection) index(id string) int {
	for i := range c {
		if c[i].ID == id {
			return i
		}
	}
	return -1
}

// MessagesOf returns a copy of the messages of chat id, empty when unknown.
func (c Collection) MessagesOf(id string) []Message {
	if i := c.index(id); i >= 0 {
		return append([]Message{}, c[i].Messages...)
	}
	return []Message{}
}
