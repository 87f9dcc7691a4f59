package mcp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/mattt/mailbridge/internal/mailstore"
	"github.com/mattt/mailbridge/internal/search"
)

func (s *Server) listCalendars(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	calendars, err := s.store.Calendars(ctx)
	if errors.Is(err, mailstore.ErrUnavailable) {
		return nil, errors.New("Calendar support is unavailable")
	}
	if err != nil {
		return nil, fmt.Errorf("Error listing calendars: %w", err)
	}
	if calendars == nil {
		calendars = []mailstore.Calendar{}
	}
	return map[string]interface{}{"calendars": calendars}, nil
}

func (s *Server) searchContacts(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input struct {
		Query      string `json:"query"`
		MaxResults int    `json:"maxResults"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	contacts, err := s.store.Contacts(ctx)
	if errors.Is(err, mailstore.ErrUnavailable) {
		return nil, errors.New("Contacts are unavailable")
	}
	if err != nil {
		return nil, fmt.Errorf("Error reading contacts: %w", err)
	}

	limit := search.ClampMaxResults(input.MaxResults)
	query := strings.ToLower(input.Query)

	matches := []mailstore.Contact{}
	for _, c := range contacts {
		if len(matches) >= limit {
			break
		}
		if strings.Contains(strings.ToLower(c.Name), query) || strings.Contains(strings.ToLower(c.Email), query) {
			matches = append(matches, c)
		}
	}

	return map[string]interface{}{
		"contacts": matches,
		"count":    len(matches),
	}, nil
}
