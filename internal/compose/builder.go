// Package compose builds the field sets of new messages, replies and
// forwards and hands them to the mail store as drafts.
package compose

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/mattt/mailbridge/internal/mailstore"
)

// Headers holds the addressing and threading headers of a draft.
type Headers struct {
	To         string
	Cc         string
	Bcc        string
	Subject    string
	References string
	InReplyTo  string
}

// Config is everything a variant contributes to a draft.
type Config struct {
	Headers     Headers
	BodyHTML    string
	Attachments []mailstore.Attachment
	Identity    *mailstore.Identity
}

// Assemble builds the compose field set for cfg. The compose type is always
// "new"; threading is carried by the headers and the body.
func Assemble(cfg Config) mailstore.ComposeFields {
	return mailstore.ComposeFields{
		Type:        mailstore.ComposeTypeNew,
		To:          cfg.Headers.To,
		Cc:          cfg.Headers.Cc,
		Bcc:         cfg.Headers.Bcc,
		Subject:     cfg.Headers.Subject,
		Body:        cfg.BodyHTML,
		References:  cfg.Headers.References,
		InReplyTo:   cfg.Headers.InReplyTo,
		Attachments: cfg.Attachments,
		Identity:    cfg.Identity,
	}
}

// Store is the part of the mail store a Builder needs.
type Store interface {
	Accounts(ctx context.Context) ([]mailstore.Account, error)
	DefaultIdentity(ctx context.Context) (mailstore.Identity, error)
	OpenCompose(ctx context.Context, fields mailstore.ComposeFields) error
}

// Request carries the caller-supplied fields shared by every variant.
type Request struct {
	To          string
	Cc          string
	Bcc         string
	Subject     string
	Body        string
	IsHTML      bool
	From        string
	AccountID   string
	Attachments []string
}

// ReplyRequest is a Request for a reply.
type ReplyRequest struct {
	Request
	ReplyAll bool
}

// Result is the outcome of a compose call.
type Result struct {
	Success     bool              `json:"success"`
	Message     string            `json:"message"`
	ComposeType string            `json:"composeType"`
	Attachments *AttachmentResult `json:"attachments,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"`
}

// Builder creates drafts.
type Builder struct {
	store  Store
	logger *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) {
		b.logger = logger
	}
}

// NewBuilder creates a Builder that stages drafts in store.
func NewBuilder(store Store, opts ...Option) *Builder {
	b := &Builder{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// New opens a draft of a new message.
func (b *Builder) New(ctx context.Context, req Request) (*Result, error) {
	sender, err := b.resolveIdentity(ctx, req.AccountID, req.From)
	if err != nil {
		return nil, err
	}

	atts, staged := StageFiles(req.Attachments)
	cfg := Config{
		Headers: Headers{
			To:      req.To,
			Cc:      req.Cc,
			Bcc:     req.Bcc,
			Subject: req.Subject,
		},
		BodyHTML:    FormatBody(req.Body, req.IsHTML),
		Attachments: atts,
		Identity:    sender.identity,
	}

	var result *AttachmentResult
	if len(req.Attachments) > 0 {
		result = &staged
	}
	return b.open(ctx, cfg, "New message", result, sender.warnings)
}

// Reply opens a threaded reply to original.
func (b *Builder) Reply(ctx context.Context, original *mailstore.Message, req ReplyRequest) (*Result, error) {
	accountID := req.AccountID
	if accountID == "" {
		accountID = mailstore.AccountIDFromURI(original.FolderURI)
	}
	sender, err := b.resolveIdentity(ctx, accountID, req.From)
	if err != nil {
		return nil, err
	}

	to := req.To
	if to == "" {
		to = original.Author
	}

	cc := req.Cc
	if req.ReplyAll {
		all := ReplyAllCc(original.Recipients, original.CcList, sender.own, Addresses(to))
		cc = JoinAddresses(strings.Join(all, ", "), req.Cc)
	}

	references, inReplyTo := ThreadHeaders(original)
	body := FormatBody(req.Body, req.IsHTML) + "<br><br>" + QuoteBlock(original)

	atts, staged := StageFiles(req.Attachments)
	cfg := Config{
		Headers: Headers{
			To:         to,
			Cc:         cc,
			Bcc:        req.Bcc,
			Subject:    ReplySubject(original.Subject),
			References: references,
			InReplyTo:  inReplyTo,
		},
		BodyHTML:    body,
		Attachments: atts,
		Identity:    sender.identity,
	}

	var result *AttachmentResult
	if len(req.Attachments) > 0 {
		result = &staged
	}
	label := "Reply"
	if req.ReplyAll {
		label = "Reply-all"
	}
	return b.open(ctx, cfg, label, result, sender.warnings)
}

// Forward opens a forward of original. The original's attachments are
// carried by reference, followed by any requested files.
func (b *Builder) Forward(ctx context.Context, original *mailstore.Message, req Request) (*Result, error) {
	if strings.TrimSpace(req.To) == "" {
		return nil, errors.New("Missing recipient")
	}

	accountID := req.AccountID
	if accountID == "" {
		accountID = mailstore.AccountIDFromURI(original.FolderURI)
	}
	sender, err := b.resolveIdentity(ctx, accountID, req.From)
	if err != nil {
		return nil, err
	}

	body := ForwardBlock(original)
	if req.Body != "" {
		body = FormatBody(req.Body, req.IsHTML) + "<br><br>" + body
	}

	atts := make([]mailstore.Attachment, 0, len(original.Attachments)+len(req.Attachments))
	for _, att := range original.Attachments {
		atts = append(atts, mailstore.Attachment{
			Name:        att.Name,
			ContentType: att.ContentType,
			URL:         att.URL,
			Size:        att.Size,
		})
	}
	extra, staged := StageFiles(req.Attachments)
	atts = append(atts, extra...)
	staged.Added += len(original.Attachments)

	cfg := Config{
		Headers: Headers{
			To:      req.To,
			Cc:      req.Cc,
			Bcc:     req.Bcc,
			Subject: ForwardSubject(original.Subject),
		},
		BodyHTML:    body,
		Attachments: atts,
		Identity:    sender.identity,
	}
	return b.open(ctx, cfg, "Forward", &staged, sender.warnings)
}

func (b *Builder) open(ctx context.Context, cfg Config, label string, attachments *AttachmentResult, warnings []string) (*Result, error) {
	fields := Assemble(cfg)
	if err := b.store.OpenCompose(ctx, fields); err != nil {
		return nil, fmt.Errorf("error opening compose window: %w", err)
	}

	b.logger.Debug("Draft staged",
		"label", label,
		"to", fields.To,
		"attachments", len(fields.Attachments))

	msg := label + " draft opened for review. Nothing was sent."
	if attachments != nil {
		msg += " " + attachments.Summary() + "."
	}

	return &Result{
		Success:     true,
		Message:     msg,
		ComposeType: fields.Type,
		Attachments: attachments,
		Warnings:    warnings,
	}, nil
}

type sender struct {
	identity *mailstore.Identity
	own      []string
	warnings []string
}

// resolveIdentity picks the sending identity: an explicit id or email, else
// the account's default, else the store's default. An explicit identity that
// cannot be found is reported as a warning and the fallback is used.
func (b *Builder) resolveIdentity(ctx context.Context, accountID, from string) (sender, error) {
	var s sender

	accounts, err := b.store.Accounts(ctx)
	if err != nil {
		return s, fmt.Errorf("error listing accounts: %w", err)
	}

	if from != "" {
		for _, acct := range accounts {
			for _, ident := range acct.Identities {
				if strings.EqualFold(ident.ID, from) || strings.EqualFold(ident.Email, from) {
					ident.AccountID = acct.ID
					s.identity = &ident
					break
				}
			}
			if s.identity != nil {
				break
			}
		}
		if s.identity == nil {
			s.warnings = append(s.warnings, fmt.Sprintf("Identity not found: %s; using the default identity", from))
		}
	}

	if s.identity == nil && accountID != "" {
		for _, acct := range accounts {
			if acct.ID != accountID {
				continue
			}
			if ident, ok := acct.DefaultIdentity(); ok {
				ident.AccountID = acct.ID
				s.identity = &ident
			}
		}
	}

	if s.identity == nil {
		ident, err := b.store.DefaultIdentity(ctx)
		switch {
		case err == nil:
			s.identity = &ident
		case errors.Is(err, mailstore.ErrNotFound), errors.Is(err, mailstore.ErrUnavailable):
		default:
			s.warnings = append(s.warnings, fmt.Sprintf("Default identity unavailable: %v", err))
		}
	}

	for _, acct := range accounts {
		if acct.ID != accountID && (s.identity == nil || acct.ID != s.identity.AccountID) {
			continue
		}
		for _, ident := range acct.Identities {
			s.own = append(s.own, ident.Email)
		}
	}
	if s.identity != nil {
		s.own = append(s.own, s.identity.Email)
	}

	return s, nil
}
