package maildir

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net/url"
	"os"
	"strconv"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
	"github.com/jhillyerd/enmime"

	"github.com/mattt/mailbridge/internal/mailstore"
)

func readHeader(path string) (mailstore.Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return mailstore.Header{}, err
	}
	defer f.Close()

	h, _, err := parseHeader(f, path)
	return h, err
}

// parseHeader reads the header section of a message file. Decoding failures
// fall back to the raw header text.
func parseHeader(r io.Reader, path string) (mailstore.Header, []string, error) {
	th, err := textproto.ReadHeader(bufio.NewReader(r))
	if err != nil {
		return mailstore.Header{}, nil, fmt.Errorf("error reading header: %w", err)
	}
	mh := mail.Header{}
	mh.Header.Header = th

	h := mailstore.Header{
		RawSubject:    mh.Get("Subject"),
		RawAuthor:     mh.Get("From"),
		RawRecipients: mh.Get("To"),
	}
	h.Subject = decoded(&mh, "Subject")
	h.Author = decoded(&mh, "From")
	h.Recipients = decoded(&mh, "To")
	h.CcList = decoded(&mh, "Cc")

	if id, err := mh.MessageID(); err == nil && id != "" {
		h.MessageID = id
	} else {
		h.MessageID = uniqueName(path)
	}
	if date, err := mh.Date(); err == nil {
		h.Date = date.UTC()
	}

	flags := parseFlags(path)
	h.Read = strings.ContainsRune(flags, flagSeen)
	h.Flagged = strings.ContainsRune(flags, flagFlagged)

	refs, _ := mh.MsgIDList("References")
	return h, refs, nil
}

func decoded(mh *mail.Header, key string) string {
	if v, err := mh.Text(key); err == nil {
		return v
	}
	return mh.Get(key)
}

func (f *folder) load(path string) (*mailstore.Message, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading message: %w", err)
	}

	h, refs, err := parseHeader(bytes.NewReader(data), path)
	if err != nil {
		return nil, err
	}

	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("error parsing message body: %w", err)
	}

	msg := &mailstore.Message{
		Header:     h,
		FolderURI:  f.URI(),
		References: refs,
		Body:       env.Text,
		HTMLBody:   env.HTML,
	}

	unique := uniqueName(path)
	for i, part := range env.Attachments {
		msg.Attachments = append(msg.Attachments, mailstore.Attachment{
			Name:        part.FileName,
			ContentType: part.ContentType,
			URL:         attachmentURL(f.URI(), unique, i),
			Size:        int64(len(part.Content)),
		})
	}
	return msg, nil
}

func attachmentURL(folderURI, unique string, part int) string {
	q := url.Values{}
	q.Set("message", unique)
	q.Set("part", strconv.Itoa(part))
	return folderURI + "?" + q.Encode()
}

// attachmentContent resolves an attachment URL to its bytes: file:// URLs
// are read from disk, mailbox:// URLs from the referenced message part.
func (s *Store) attachmentContent(rawURL string) ([]byte, error) {
	if path, ok := strings.CutPrefix(rawURL, "file://"); ok {
		if u, err := url.Parse(rawURL); err == nil && u.Path != "" {
			path = u.Path
		}
		return os.ReadFile(path)
	}

	folderURI, query, ok := strings.Cut(rawURL, "?")
	if !ok {
		return nil, fmt.Errorf("attachment %q: %w", rawURL, mailstore.ErrNotFound)
	}
	values, err := url.ParseQuery(query)
	if err != nil {
		return nil, fmt.Errorf("attachment %q: %w", rawURL, err)
	}
	part, err := strconv.Atoi(values.Get("part"))
	if err != nil {
		return nil, fmt.Errorf("attachment %q: invalid part", rawURL)
	}

	accountID, rel, err := parseURI(folderURI)
	if err != nil {
		return nil, err
	}
	f, err := s.folder(accountID, rel)
	if err != nil {
		return nil, err
	}
	path, err := f.find(values.Get("message"))
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if part < 0 || part >= len(env.Attachments) {
		return nil, fmt.Errorf("attachment %q: %w", rawURL, mailstore.ErrNotFound)
	}
	return env.Attachments[part].Content, nil
}
