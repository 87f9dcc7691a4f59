package maildir

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/mattt/mailbridge/internal/mailstore"
)

const (
	accountsFile  = "accounts.yaml"
	calendarsFile = "calendars.yaml"
	contactsFile  = "contacts.yaml"
)

// accountsDoc is the layout of accounts.yaml.
type accountsDoc struct {
	DefaultIdentity string              `yaml:"default_identity,omitempty"`
	Accounts        []mailstore.Account `yaml:"accounts"`
}

type calendarsDoc struct {
	Calendars []mailstore.Calendar `yaml:"calendars"`
}

type contactsDoc struct {
	AddressBooks []struct {
		Name     string              `yaml:"name"`
		Contacts []mailstore.Contact `yaml:"contacts"`
	} `yaml:"address_books"`
}

// readYAML decodes the named file under the mail root into v. A missing
// file is reported as mailstore.ErrUnavailable.
func (s *Store) readYAML(name string, v interface{}) error {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, mailstore.ErrUnavailable)
	}
	if err != nil {
		return fmt.Errorf("error reading %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return fmt.Errorf("error parsing %s: %w", name, err)
	}
	return nil
}

func (s *Store) loadAccounts() (accountsDoc, error) {
	var doc accountsDoc
	if err := s.readYAML(accountsFile, &doc); err != nil {
		return doc, err
	}
	for i := range doc.Accounts {
		acct := &doc.Accounts[i]
		if acct.Name == "" {
			acct.Name = acct.ID
		}
		for j := range acct.Identities {
			ident := &acct.Identities[j]
			ident.AccountID = acct.ID
			if ident.ID == "" {
				ident.ID = ident.Email
			}
		}
	}
	return doc, nil
}

// SaveAccounts writes accounts.yaml.
func (s *Store) SaveAccounts(defaultIdentity string, accounts []mailstore.Account) error {
	data, err := yaml.Marshal(accountsDoc{DefaultIdentity: defaultIdentity, Accounts: accounts})
	if err != nil {
		return fmt.Errorf("error encoding accounts: %w", err)
	}
	if err := os.MkdirAll(s.root, 0o755); err != nil {
		return fmt.Errorf("error creating mail root: %w", err)
	}
	return os.WriteFile(filepath.Join(s.root, accountsFile), data, 0o644)
}
