package maildir

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
	"github.com/google/uuid"

	"github.com/mattt/mailbridge/internal/mailstore"
)

// ComposeTypeHeader records the compose type a draft was opened with.
const ComposeTypeHeader = "X-Mailbridge-Compose-Type"

// OpenCompose stages fields as an RFC 5322 draft in the drafts directory.
// Attachments that cannot be read are left out of the draft and logged.
func (s *Store) OpenCompose(ctx context.Context, fields mailstore.ComposeFields) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.draftsDir, 0o755); err != nil {
		return fmt.Errorf("error creating drafts directory: %w", err)
	}

	id := uuid.New()
	path := filepath.Join(s.draftsDir, id.String()+".eml")

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating draft: %w", err)
	}

	if err := s.writeDraft(f, id, fields); err != nil {
		f.Close()
		os.Remove(path)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return fmt.Errorf("error writing draft: %w", err)
	}

	s.logger.Info("Draft staged", "path", path, "subject", fields.Subject)
	return nil
}

func (s *Store) writeDraft(w io.Writer, id uuid.UUID, fields mailstore.ComposeFields) error {
	var h mail.Header
	h.SetDate(time.Now())
	h.SetMessageID(id.String() + "@mailbridge.local")
	h.SetSubject(fields.Subject)

	composeType := fields.Type
	if composeType == "" {
		composeType = mailstore.ComposeTypeNew
	}
	h.Set(ComposeTypeHeader, composeType)

	if fields.Identity != nil && fields.Identity.Email != "" {
		h.SetAddressList("From", []*mail.Address{{Name: fields.Identity.Name, Address: fields.Identity.Email}})
	}
	setAddresses(&h, "To", fields.To)
	setAddresses(&h, "Cc", fields.Cc)
	setAddresses(&h, "Bcc", fields.Bcc)
	setMsgIDs(&h, "In-Reply-To", fields.InReplyTo)
	setMsgIDs(&h, "References", fields.References)

	mw, err := mail.CreateWriter(w, h)
	if err != nil {
		return fmt.Errorf("error writing draft header: %w", err)
	}

	var bh mail.InlineHeader
	bh.SetContentType("text/html", map[string]string{"charset": "utf-8"})
	bw, err := mw.CreateSingleInline(bh)
	if err != nil {
		return fmt.Errorf("error writing draft body: %w", err)
	}
	if _, err := io.WriteString(bw, fields.Body); err != nil {
		return fmt.Errorf("error writing draft body: %w", err)
	}
	if err := bw.Close(); err != nil {
		return fmt.Errorf("error writing draft body: %w", err)
	}

	for _, att := range fields.Attachments {
		content, err := s.attachmentContent(att.URL)
		if err != nil {
			s.logger.Warn("Attachment left out of draft", "name", att.Name, "url", att.URL, "error", err)
			continue
		}

		var ah mail.AttachmentHeader
		contentType := att.ContentType
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		ah.Set("Content-Type", contentType)
		ah.SetFilename(att.Name)

		aw, err := mw.CreateAttachment(ah)
		if err != nil {
			return fmt.Errorf("error writing attachment %s: %w", att.Name, err)
		}
		if _, err := aw.Write(content); err != nil {
			return fmt.Errorf("error writing attachment %s: %w", att.Name, err)
		}
		if err := aw.Close(); err != nil {
			return fmt.Errorf("error writing attachment %s: %w", att.Name, err)
		}
	}

	if err := mw.Close(); err != nil {
		return fmt.Errorf("error finishing draft: %w", err)
	}
	return nil
}

func setAddresses(h *mail.Header, key, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if list, err := mail.ParseAddressList(value); err == nil {
		h.SetAddressList(key, list)
		return
	}
	h.Set(key, value)
}

func setMsgIDs(h *mail.Header, key, value string) {
	var ids []string
	for _, id := range strings.Fields(value) {
		if id = mailstore.NormalizeMessageID(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) > 0 {
		h.SetMsgIDList(key, ids)
	}
}
