package maildir

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jhillyerd/enmime"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattt/mailbridge/internal/mailstore"
)

const accountsYAML = `
default_identity: me@home.net
accounts:
  - id: work
    name: Work
    type: imap
    identities:
      - id: w1
        name: Me
        email: me@work.com
  - id: home
    type: local
    identities:
      - name: Me
        email: me@home.net
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func rawMessage(id, subject, date string) string {
	return "Message-Id: <" + id + ">\r\n" +
		"From: Alice <alice@example.com>\r\n" +
		"To: me@work.com\r\n" +
		"Cc: Bob <bob@example.com>\r\n" +
		"Subject: " + subject + "\r\n" +
		"Date: " + date + "\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"Hello from " + id + "\r\n"
}

func newFixture(t *testing.T) *Store {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, accountsFile), accountsYAML)

	writeFile(t, filepath.Join(root, "work", "INBOX", "cur", "1001.host:2,S"),
		rawMessage("one@example.com", "First", "Mon, 01 Jan 2024 10:00:00 +0000"))
	writeFile(t, filepath.Join(root, "work", "INBOX", "new", "1002.host"),
		rawMessage("two@example.com", "=?utf-8?q?Caf=C3=A9?=", "Tue, 02 Jan 2024 10:00:00 +0000"))
	writeFile(t, filepath.Join(root, "work", "INBOX", "Projects", "cur", "1003.host:2,FS"),
		rawMessage("three@example.com", "Nested", "Wed, 03 Jan 2024 10:00:00 +0000"))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "work", "Archive", "cur"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "home"), 0o755))

	return New(root)
}

func TestStore_Accounts(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	accounts, err := s.Accounts(ctx)
	require.NoError(t, err)
	require.Len(t, accounts, 2)
	assert.Equal(t, "Work", accounts[0].Name)
	assert.Equal(t, "home", accounts[1].Name)
	assert.Equal(t, "work", accounts[0].Identities[0].AccountID)
	assert.Equal(t, "me@home.net", accounts[1].Identities[0].ID)

	ident, err := s.DefaultIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, "me@home.net", ident.Email)
	assert.Equal(t, "home", ident.AccountID)
}

func TestStore_MissingAccountsFile(t *testing.T) {
	s := New(t.TempDir())
	_, err := s.Accounts(context.Background())
	assert.ErrorIs(t, err, mailstore.ErrUnavailable)
}

func TestStore_FolderTree(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	root, err := s.RootFolder(ctx, "work")
	require.NoError(t, err)
	assert.Equal(t, "mailbox://work", root.URI())
	assert.Equal(t, "work", root.Name())

	children, err := root.Children(ctx)
	require.NoError(t, err)
	require.Len(t, children, 2)
	assert.Equal(t, "mailbox://work/Archive", children[0].URI())
	assert.Equal(t, "mailbox://work/INBOX", children[1].URI())

	grandchildren, err := children[1].Children(ctx)
	require.NoError(t, err)
	require.Len(t, grandchildren, 1)
	assert.Equal(t, "Projects", grandchildren[0].Name())
	assert.Equal(t, "mailbox://work/INBOX/Projects", grandchildren[0].URI())

	_, err = s.RootFolder(ctx, "nope")
	assert.ErrorIs(t, err, mailstore.ErrNotFound)

	_, err = s.Folder(ctx, "mailbox://work/../home")
	assert.ErrorIs(t, err, mailstore.ErrNotFound)

	_, err = s.Folder(ctx, "mailbox://work/Missing")
	assert.ErrorIs(t, err, mailstore.ErrNotFound)
}

func TestFolder_MessagesAndRefresh(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	inbox, err := s.Folder(ctx, "mailbox://work/INBOX")
	require.NoError(t, err)

	headers, err := inbox.Messages(ctx)
	require.NoError(t, err)
	require.Len(t, headers, 2)

	first := headers[0]
	assert.Equal(t, "one@example.com", first.MessageID)
	assert.Equal(t, "First", first.Subject)
	assert.Equal(t, "Alice <alice@example.com>", first.Author)
	assert.Equal(t, "Bob <bob@example.com>", first.CcList)
	assert.True(t, first.Read)
	assert.False(t, first.Flagged)
	assert.Equal(t, time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC), first.Date)

	second := headers[1]
	assert.Equal(t, "Café", second.Subject)
	assert.Equal(t, "=?utf-8?q?Caf=C3=A9?=", second.RawSubject)
	assert.False(t, second.Read)

	require.NoError(t, inbox.Refresh(ctx))
	entries, err := os.ReadDir(filepath.Join(s.Root(), "work", "INBOX", "new"))
	require.NoError(t, err)
	assert.Empty(t, entries)
	_, err = os.Stat(filepath.Join(s.Root(), "work", "INBOX", "cur", "1002.host:2,"))
	assert.NoError(t, err)
}

func TestStore_MessageAndSetRead(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()
	uri := "mailbox://work/INBOX"

	msg, err := s.Message(ctx, uri, "<two@example.com>")
	require.NoError(t, err)
	assert.Equal(t, uri, msg.FolderURI)
	assert.Contains(t, msg.Body, "Hello from two@example.com")

	require.NoError(t, s.SetRead(ctx, uri, "two@example.com", true))
	msg, err = s.Message(ctx, uri, "two@example.com")
	require.NoError(t, err)
	assert.True(t, msg.Read)
	_, err = os.Stat(filepath.Join(s.Root(), "work", "INBOX", "cur", "1002.host:2,S"))
	assert.NoError(t, err)

	require.NoError(t, s.SetRead(ctx, uri, "1001.host", false))
	msg, err = s.Message(ctx, uri, "one@example.com")
	require.NoError(t, err)
	assert.False(t, msg.Read)

	_, err = s.Message(ctx, uri, "missing@example.com")
	assert.ErrorIs(t, err, mailstore.ErrNotFound)
}

func TestStore_MessageAttachments(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	raw := "Message-Id: <att@example.com>\r\n" +
		"From: alice@example.com\r\n" +
		"To: me@work.com\r\n" +
		"Subject: With file\r\n" +
		"MIME-Version: 1.0\r\n" +
		"Content-Type: multipart/mixed; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; charset=utf-8\r\n" +
		"\r\n" +
		"See attached.\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain; name=notes.txt\r\n" +
		"Content-Disposition: attachment; filename=notes.txt\r\n" +
		"\r\n" +
		"secret notes\r\n" +
		"--XYZ--\r\n"
	writeFile(t, filepath.Join(s.Root(), "work", "Archive", "cur", "2001.host:2,S"), raw)

	msg, err := s.Message(ctx, "mailbox://work/Archive", "att@example.com")
	require.NoError(t, err)
	require.Len(t, msg.Attachments, 1)
	att := msg.Attachments[0]
	assert.Equal(t, "notes.txt", att.Name)
	assert.Equal(t, "mailbox://work/Archive?message=2001.host&part=0", att.URL)

	content, err := s.attachmentContent(att.URL)
	require.NoError(t, err)
	assert.Equal(t, "secret notes", strings.TrimSpace(string(content)))
}

func TestStore_OpenCompose(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	file := filepath.Join(t.TempDir(), "report.txt")
	writeFile(t, file, "quarterly numbers")

	err := s.OpenCompose(ctx, mailstore.ComposeFields{
		Type:       mailstore.ComposeTypeNew,
		To:         `"Doe, Jane" <jane@example.com>`,
		Cc:         "bob@example.com",
		Subject:    "Re: Numbers",
		Body:       "Hi<br>caf&#233;",
		References: "<root@example.com> <one@example.com>",
		InReplyTo:  "<one@example.com>",
		Identity:   &mailstore.Identity{Name: "Me", Email: "me@work.com"},
		Attachments: []mailstore.Attachment{
			{Name: "report.txt", ContentType: "text/plain", URL: "file://" + file},
			{Name: "gone.txt", URL: "file:///does/not/exist"},
		},
	})
	require.NoError(t, err)

	entries, err := os.ReadDir(s.DraftsDir())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasSuffix(entries[0].Name(), ".eml"))

	f, err := os.Open(filepath.Join(s.DraftsDir(), entries[0].Name()))
	require.NoError(t, err)
	defer f.Close()

	env, err := enmime.ReadEnvelope(f)
	require.NoError(t, err)
	assert.Equal(t, "Re: Numbers", env.GetHeader("Subject"))
	assert.Equal(t, "new", env.GetHeader(ComposeTypeHeader))
	assert.Equal(t, "<one@example.com>", env.GetHeader("In-Reply-To"))
	assert.Contains(t, env.GetHeader("References"), "<root@example.com>")
	assert.Contains(t, env.GetHeader("To"), "jane@example.com")
	assert.Contains(t, env.GetHeader("From"), "me@work.com")
	assert.Contains(t, env.HTML, "caf&#233;")
	require.Len(t, env.Attachments, 1)
	assert.Equal(t, "report.txt", env.Attachments[0].FileName)
	assert.Equal(t, "quarterly numbers", string(env.Attachments[0].Content))
}

func TestStore_CalendarsAndContacts(t *testing.T) {
	s := newFixture(t)
	ctx := context.Background()

	_, err := s.Calendars(ctx)
	assert.ErrorIs(t, err, mailstore.ErrUnavailable)

	writeFile(t, filepath.Join(s.Root(), calendarsFile), `
calendars:
  - id: personal
    name: Personal
    type: local
  - id: holidays
    name: Holidays
    type: subscribed
    read_only: true
`)
	calendars, err := s.Calendars(ctx)
	require.NoError(t, err)
	require.Len(t, calendars, 2)
	assert.True(t, calendars[1].ReadOnly)

	writeFile(t, filepath.Join(s.Root(), contactsFile), `
address_books:
  - name: Personal
    contacts:
      - name: Jane Doe
        email: jane@example.com
  - name: Work
    contacts:
      - name: Bob
        email: bob@example.com
`)
	contacts, err := s.Contacts(ctx)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "Work", contacts[1].AddressBook)
}
