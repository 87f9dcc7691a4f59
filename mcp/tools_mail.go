package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/mattt/mailbridge/internal/mailstore"
	"github.com/mattt/mailbridge/internal/search"
)

type messageRef struct {
	MessageID  string `json:"messageId"`
	FolderPath string `json:"folderPath"`
}

func (s *Server) listAccounts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("Error listing accounts: %w", err)
	}
	if accounts == nil {
		accounts = []mailstore.Account{}
	}
	return map[string]interface{}{"accounts": accounts}, nil
}

type folderEntry struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	AccountID string `json:"accountId"`
	Depth     int    `json:"depth"`
}

func (s *Server) listFolders(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input struct {
		AccountID string `json:"accountId"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	roots, err := s.accountRoots(ctx, input.AccountID)
	if err != nil {
		return nil, err
	}

	type frame struct {
		folder mailstore.Folder
		depth  int
	}

	folders := []folderEntry{}
	for _, root := range roots {
		accountID := mailstore.AccountIDFromURI(root.URI())
		stack := []frame{{root, 0}}
		for len(stack) > 0 {
			f := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			if f.depth > 0 {
				folders = append(folders, folderEntry{
					Name:      f.folder.Name(),
					Path:      f.folder.URI(),
					AccountID: accountID,
					Depth:     f.depth,
				})
			}

			children, err := f.folder.Children(ctx)
			if err != nil {
				s.logger.Debug("Skipping subfolders", "folder", f.folder.URI(), "error", err)
				continue
			}
			for i := len(children) - 1; i >= 0; i-- {
				stack = append(stack, frame{children[i], f.depth + 1})
			}
		}
	}

	return map[string]interface{}{"folders": folders}, nil
}

type searchArgs struct {
	Query      string `json:"query"`
	StartDate  string `json:"startDate"`
	EndDate    string `json:"endDate"`
	MaxResults int    `json:"maxResults"`
	SortOrder  string `json:"sortOrder"`
	AccountID  string `json:"accountId"`
	FolderPath string `json:"folderPath"`
}

func (s *Server) searchMessages(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input searchArgs
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	q, err := search.ParseQuery(search.Params{
		Query:      input.Query,
		StartDate:  input.StartDate,
		EndDate:    input.EndDate,
		MaxResults: input.MaxResults,
		SortOrder:  input.SortOrder,
	})
	if err != nil {
		return nil, err
	}

	var roots []mailstore.Folder
	if input.FolderPath != "" {
		folder, err := s.store.Folder(ctx, input.FolderPath)
		if err != nil {
			return nil, folderError(input.FolderPath, err)
		}
		roots = []mailstore.Folder{folder}
	} else {
		roots, err = s.accountRoots(ctx, input.AccountID)
		if err != nil {
			return nil, err
		}
	}

	records, err := s.search.Search(ctx, roots, q)
	if err != nil {
		return nil, fmt.Errorf("Search failed: %w", err)
	}

	return map[string]interface{}{
		"messages": records,
		"count":    len(records),
	}, nil
}

// accountRoots returns the root folder of one account, or of every account
// when accountID is empty. Accounts whose root cannot be opened are skipped.
func (s *Server) accountRoots(ctx context.Context, accountID string) ([]mailstore.Folder, error) {
	accounts, err := s.store.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("Error listing accounts: %w", err)
	}

	var roots []mailstore.Folder
	for _, acct := range accounts {
		if accountID != "" && acct.ID != accountID {
			continue
		}
		root, err := s.store.RootFolder(ctx, acct.ID)
		if err != nil {
			s.logger.Debug("Skipping account", "account", acct.ID, "error", err)
			continue
		}
		roots = append(roots, root)
	}

	if accountID != "" && len(roots) == 0 {
		return nil, fmt.Errorf("Account not found: %s", accountID)
	}
	return roots, nil
}

type messageDetail struct {
	ID          string                 `json:"id"`
	Subject     string                 `json:"subject"`
	Author      string                 `json:"author"`
	Recipients  string                 `json:"recipients"`
	CcList      string                 `json:"ccList"`
	Date        *string                `json:"date"`
	FolderPath  string                 `json:"folderPath"`
	Read        bool                   `json:"read"`
	Flagged     bool                   `json:"flagged"`
	Body        string                 `json:"body"`
	BodyType    string                 `json:"bodyType"`
	Attachments []mailstore.Attachment `json:"attachments"`
}

func (s *Server) getMessage(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input messageRef
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	msg, err := s.loadMessage(ctx, input)
	if err != nil {
		return nil, err
	}

	detail := messageDetail{
		ID:          msg.MessageID,
		Subject:     msg.Subject,
		Author:      msg.Author,
		Recipients:  msg.Recipients,
		CcList:      msg.CcList,
		FolderPath:  input.FolderPath,
		Read:        msg.Read,
		Flagged:     msg.Flagged,
		Body:        msg.Text(),
		BodyType:    "text",
		Attachments: msg.Attachments,
	}
	if msg.Body == "" && msg.HTMLBody != "" {
		detail.BodyType = "html"
	}
	if detail.Attachments == nil {
		detail.Attachments = []mailstore.Attachment{}
	}
	if !msg.Date.IsZero() {
		d := search.FormatDate(msg.Date)
		detail.Date = &d
	}
	return detail, nil
}

func (s *Server) markAsRead(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input struct {
		messageRef
		Read *bool `json:"read"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	read := true
	if input.Read != nil {
		read = *input.Read
	}

	if err := s.store.SetRead(ctx, input.FolderPath, input.MessageID, read); err != nil {
		return nil, messageError(input.messageRef, err)
	}

	return map[string]interface{}{
		"success":    true,
		"messageId":  input.MessageID,
		"folderPath": input.FolderPath,
		"read":       read,
	}, nil
}

func (s *Server) loadMessage(ctx context.Context, ref messageRef) (*mailstore.Message, error) {
	if _, err := s.store.Folder(ctx, ref.FolderPath); err != nil {
		return nil, folderError(ref.FolderPath, err)
	}
	msg, err := s.store.Message(ctx, ref.FolderPath, ref.MessageID)
	if err != nil {
		return nil, messageError(ref, err)
	}
	return msg, nil
}

func folderError(uri string, err error) error {
	if errors.Is(err, mailstore.ErrNotFound) {
		return fmt.Errorf("Folder not found: %s", uri)
	}
	return fmt.Errorf("Error opening folder %s: %w", uri, err)
}

func messageError(ref messageRef, err error) error {
	if errors.Is(err, mailstore.ErrNotFound) {
		return fmt.Errorf("Message not found: %s in %s", ref.MessageID, ref.FolderPath)
	}
	return fmt.Errorf("Error reading message %s: %w", ref.MessageID, err)
}
