// Package maildir implements the mail store over a Maildir-style directory
// tree.
//
// The mail root holds accounts.yaml, optional calendars.yaml and
// contacts.yaml, and one directory per account. Every directory below an
// account is a folder; its messages live in cur/ and new/, and any other
// subdirectory is a child folder. Drafts are written to the drafts
// directory and never sent.
package maildir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/mattt/mailbridge/internal/mailstore"
)

// Store is a filesystem mail store. It is safe for concurrent use;
// operations that move or create files are serialized.
type Store struct {
	root      string
	draftsDir string
	logger    *slog.Logger

	mu sync.Mutex
}

var _ mailstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithDraftsDir sets where drafts are written. Defaults to <root>/drafts.
func WithDraftsDir(dir string) Option {
	return func(s *Store) {
		if dir != "" {
			s.draftsDir = dir
		}
	}
}

// WithLogger sets the store's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New opens the store rooted at root.
func New(root string, opts ...Option) *Store {
	s := &Store{
		root:      root,
		draftsDir: filepath.Join(root, "drafts"),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the mail root directory.
func (s *Store) Root() string {
	return s.root
}

// DraftsDir returns the directory drafts are written to.
func (s *Store) DraftsDir() string {
	return s.draftsDir
}

func (s *Store) Accounts(ctx context.Context) ([]mailstore.Account, error) {
	doc, err := s.loadAccounts()
	if err != nil {
		return nil, err
	}
	return doc.Accounts, nil
}

// DefaultIdentity returns the identity named by default_identity, else the
// first identity of the first account.
func (s *Store) DefaultIdentity(ctx context.Context) (mailstore.Identity, error) {
	doc, err := s.loadAccounts()
	if err != nil {
		return mailstore.Identity{}, err
	}

	for _, acct := range doc.Accounts {
		for _, ident := range acct.Identities {
			if doc.DefaultIdentity != "" && (ident.ID == doc.DefaultIdentity || strings.EqualFold(ident.Email, doc.DefaultIdentity)) {
				return ident, nil
			}
		}
	}
	for _, acct := range doc.Accounts {
		if ident, ok := acct.DefaultIdentity(); ok {
			return ident, nil
		}
	}
	return mailstore.Identity{}, fmt.Errorf("default identity: %w", mailstore.ErrNotFound)
}

func (s *Store) RootFolder(ctx context.Context, accountID string) (mailstore.Folder, error) {
	accounts, err := s.Accounts(ctx)
	if err != nil {
		return nil, err
	}
	for _, acct := range accounts {
		if acct.ID == accountID {
			return s.folder(accountID, "")
		}
	}
	return nil, fmt.Errorf("account %q: %w", accountID, mailstore.ErrNotFound)
}

func (s *Store) Folder(ctx context.Context, uri string) (mailstore.Folder, error) {
	accountID, rel, err := parseURI(uri)
	if err != nil {
		return nil, err
	}
	return s.folder(accountID, rel)
}

func (s *Store) Message(ctx context.Context, folderURI, messageID string) (*mailstore.Message, error) {
	accountID, rel, err := parseURI(folderURI)
	if err != nil {
		return nil, err
	}
	f, err := s.folder(accountID, rel)
	if err != nil {
		return nil, err
	}

	path, err := f.find(messageID)
	if err != nil {
		return nil, err
	}
	return f.load(path)
}

func (s *Store) SetRead(ctx context.Context, folderURI, messageID string, read bool) error {
	accountID, rel, err := parseURI(folderURI)
	if err != nil {
		return err
	}
	f, err := s.folder(accountID, rel)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path, err := f.find(messageID)
	if err != nil {
		return err
	}
	return f.setFlag(path, flagSeen, read)
}

func (s *Store) Calendars(ctx context.Context) ([]mailstore.Calendar, error) {
	var doc calendarsDoc
	if err := s.readYAML(calendarsFile, &doc); err != nil {
		return nil, err
	}
	return doc.Calendars, nil
}

func (s *Store) Contacts(ctx context.Context) ([]mailstore.Contact, error) {
	var doc contactsDoc
	if err := s.readYAML(contactsFile, &doc); err != nil {
		return nil, err
	}

	var contacts []mailstore.Contact
	for _, book := range doc.AddressBooks {
		for _, c := range book.Contacts {
			c.AddressBook = book.Name
			contacts = append(contacts, c)
		}
	}
	return contacts, nil
}

// FolderURI builds the URI of the folder at rel within an account.
func FolderURI(accountID, rel string) string {
	if rel == "" {
		return mailstore.URIScheme + accountID
	}
	return mailstore.URIScheme + accountID + "/" + rel
}

// parseURI splits a folder URI into its account and slash-separated path,
// rejecting paths that would leave the account directory.
func parseURI(uri string) (accountID, rel string, err error) {
	rest, ok := strings.CutPrefix(uri, mailstore.URIScheme)
	if !ok {
		return "", "", fmt.Errorf("folder %q: %w", uri, mailstore.ErrNotFound)
	}
	rest, _, _ = strings.Cut(rest, "?")
	accountID, rel, _ = strings.Cut(rest, "/")
	rel = strings.Trim(rel, "/")

	if !validSegment(accountID) {
		return "", "", fmt.Errorf("folder %q: %w", uri, mailstore.ErrNotFound)
	}
	if rel != "" {
		for _, seg := range strings.Split(rel, "/") {
			if !validSegment(seg) || reserved[seg] {
				return "", "", fmt.Errorf("folder %q: %w", uri, mailstore.ErrNotFound)
			}
		}
	}
	return accountID, rel, nil
}

func validSegment(seg string) bool {
	return seg != "" && seg != "." && seg != ".." && !strings.ContainsAny(seg, `\`)
}
