// Package mailstore describes the capability surface of the mail client the
// tools operate on: accounts and identities, the folder tree, message access,
// draft staging, calendars and address books.
package mailstore

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrNotFound indicates a folder, message or account does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnavailable indicates the store does not support a capability.
	ErrUnavailable = errors.New("capability unavailable")
)

// Identity is a sender identity that can be used to compose messages.
type Identity struct {
	ID        string `json:"id" yaml:"id"`
	Name      string `json:"name" yaml:"name"`
	Email     string `json:"email" yaml:"email"`
	AccountID string `json:"accountId" yaml:"-"`
}

// Account is a configured mail account. The first identity is its default.
type Account struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	Type       string     `json:"type" yaml:"type"`
	Identities []Identity `json:"identities" yaml:"identities"`
}

// DefaultIdentity returns the account's default identity, if any.
func (a Account) DefaultIdentity() (Identity, bool) {
	if len(a.Identities) == 0 {
		return Identity{}, false
	}
	return a.Identities[0], true
}

// Header carries the index fields of one message. Subject, Author, Recipients
// and CcList are MIME-decoded; the Raw fields hold the header text as stored.
type Header struct {
	MessageID     string
	Subject       string
	Author        string
	Recipients    string
	CcList        string
	RawSubject    string
	RawAuthor     string
	RawRecipients string
	Date          time.Time
	Read          bool
	Flagged       bool
}

// Attachment references one user-visible attachment of a message.
type Attachment struct {
	Name        string `json:"name"`
	ContentType string `json:"contentType"`
	URL         string `json:"url"`
	Size        int64  `json:"size"`
}

// Message is a fully loaded message.
type Message struct {
	Header
	FolderURI   string
	References  []string
	Body        string
	HTMLBody    string
	Attachments []Attachment
}

// Text returns the plain-text body, falling back to the HTML body.
func (m *Message) Text() string {
	if m.Body != "" {
		return m.Body
	}
	return m.HTMLBody
}

// Folder is one node of an account's folder tree.
type Folder interface {
	// Name is the display name of the folder.
	Name() string
	// URI uniquely identifies the folder across accounts.
	URI() string
	// Children lists the direct subfolders.
	Children(ctx context.Context) ([]Folder, error)
	// Refresh asks the store to sync the folder. It is advisory.
	Refresh(ctx context.Context) error
	// Messages scans the folder's message index.
	Messages(ctx context.Context) ([]Header, error)
}

// ComposeTypeNew is the only compose type used to open drafts; native
// reply/forward types discard caller-supplied bodies.
const ComposeTypeNew = "new"

// ComposeFields is the field set handed to the compose surface.
type ComposeFields struct {
	Type        string
	To          string
	Cc          string
	Bcc         string
	Subject     string
	Body        string
	References  string
	InReplyTo   string
	Attachments []Attachment
	Identity    *Identity
}

// Calendar describes one calendar.
type Calendar struct {
	ID       string `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	ReadOnly bool   `json:"readOnly" yaml:"read_only"`
}

// Contact is one address book entry.
type Contact struct {
	Name        string `json:"name" yaml:"name"`
	Email       string `json:"email" yaml:"email"`
	AddressBook string `json:"addressBook" yaml:"-"`
}

// Store is the full capability surface consumed by the tools.
type Store interface {
	Accounts(ctx context.Context) ([]Account, error)
	DefaultIdentity(ctx context.Context) (Identity, error)
	RootFolder(ctx context.Context, accountID string) (Folder, error)
	Folder(ctx context.Context, uri string) (Folder, error)
	Message(ctx context.Context, folderURI, messageID string) (*Message, error)
	SetRead(ctx context.Context, folderURI, messageID string, read bool) error
	OpenCompose(ctx context.Context, fields ComposeFields) error
	Calendars(ctx context.Context) ([]Calendar, error)
	Contacts(ctx context.Context) ([]Contact, error)
}

// URIScheme prefixes every folder URI.
const URIScheme = "mailbox://"

// AccountIDFromURI returns the account segment of a folder URI, or "" when
// uri is not a mailbox URI.
func AccountIDFromURI(uri string) string {
	rest, ok := strings.CutPrefix(uri, URIScheme)
	if !ok {
		return ""
	}
	id, _, _ := strings.Cut(rest, "/")
	id, _, _ = strings.Cut(id, "?")
	return id
}

// NormalizeMessageID strips surrounding whitespace and angle brackets.
func NormalizeMessageID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(id, "<")
	id = strings.TrimSuffix(id, ">")
	return id
}
