// Package search walks mail folder trees and collects, filters and sorts
// message headers.
package search

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/mattt/mailbridge/internal/mailstore"
)

// DateLayout is the serialized form of record dates.
const DateLayout = "2006-01-02T15:04:05.000Z"

// Record is one search hit.
type Record struct {
	ID         string  `json:"id"`
	Subject    string  `json:"subject"`
	Author     string  `json:"author"`
	Recipients string  `json:"recipients"`
	CcList     string  `json:"ccList"`
	Date       *string `json:"date"`
	Folder     string  `json:"folder"`
	FolderPath string  `json:"folderPath"`
	Read       bool    `json:"read"`
	Flagged    bool    `json:"flagged"`

	sortKey int64
}

// Engine runs searches over folder trees.
type Engine struct {
	logger *slog.Logger
	limit  int
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used to report skipped folders.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithCollectLimit overrides CollectLimit.
func WithCollectLimit(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.limit = n
		}
	}
}

// New creates an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		limit:  CollectLimit,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search walks every root in pre-order, collecting matching records until the
// collect limit is reached, then sorts and truncates them.
func (e *Engine) Search(ctx context.Context, roots []mailstore.Folder, q Query) ([]Record, error) {
	records := make([]Record, 0, q.MaxResults)

	for _, root := range roots {
		if len(records) >= e.limit {
			break
		}
		var err error
		records, err = e.walk(ctx, root, q, records)
		if err != nil {
			return nil, err
		}
	}

	Sort(records, q.Order)
	if len(records) > q.MaxResults {
		records = records[:q.MaxResults]
	}
	return records, nil
}

func (e *Engine) walk(ctx context.Context, root mailstore.Folder, q Query, records []Record) ([]Record, error) {
	stack := []mailstore.Folder{root}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		folder := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if err := folder.Refresh(ctx); err != nil {
			e.logger.Debug("Folder refresh failed", "folder", folder.URI(), "error", err)
		}

		headers, err := folder.Messages(ctx)
		if err != nil {
			e.logger.Debug("Skipping folder", "folder", folder.URI(), "error", err)
		}
		for _, h := range headers {
			if !q.matchesDate(h.Date) {
				continue
			}
			if !q.matchesText(h.Subject, h.Author, h.Recipients, h.CcList) {
				continue
			}
			records = append(records, newRecord(folder, h))
			if len(records) >= e.limit {
				return records, nil
			}
		}

		children, err := folder.Children(ctx)
		if err != nil {
			e.logger.Debug("Skipping subfolders", "folder", folder.URI(), "error", err)
			continue
		}
		for i := len(children) - 1; i >= 0; i-- {
			stack = append(stack, children[i])
		}
	}

	return records, nil
}

func newRecord(folder mailstore.Folder, h mailstore.Header) Record {
	r := Record{
		ID:         h.MessageID,
		Subject:    h.Subject,
		Author:     h.Author,
		Recipients: h.Recipients,
		CcList:     h.CcList,
		Folder:     folder.Name(),
		FolderPath: folder.URI(),
		Read:       h.Read,
		Flagged:    h.Flagged,
	}
	if !h.Date.IsZero() {
		d := FormatDate(h.Date)
		r.Date = &d
		r.sortKey = h.Date.UnixMicro()
	}
	return r
}

// FormatDate renders t as ISO-8601 UTC with milliseconds.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// Sort orders records by timestamp, keeping the collection order of ties.
func Sort(records []Record, order Order) {
	sort.SliceStable(records, func(i, j int) bool {
		if order == OrderAsc {
			return records[i].sortKey < records[j].sortKey
		}
		return records[i].sortKey > records[j].sortKey
	})
}
