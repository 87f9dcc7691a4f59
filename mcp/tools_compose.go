package mcp

import (
	"context"

	"github.com/mattt/mailbridge/internal/compose"
)

type composeArgs struct {
	To          string   `json:"to"`
	Cc          string   `json:"cc"`
	Bcc         string   `json:"bcc"`
	Subject     string   `json:"subject"`
	Body        string   `json:"body"`
	IsHTML      bool     `json:"isHtml"`
	From        string   `json:"from"`
	Attachments []string `json:"attachments"`
}

func (a composeArgs) request() compose.Request {
	return compose.Request{
		To:          a.To,
		Cc:          a.Cc,
		Bcc:         a.Bcc,
		Subject:     a.Subject,
		Body:        a.Body,
		IsHTML:      a.IsHTML,
		From:        a.From,
		Attachments: a.Attachments,
	}
}

func (s *Server) sendMail(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input composeArgs
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	return s.composer.New(ctx, input.request())
}

func (s *Server) replyToMessage(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input struct {
		messageRef
		composeArgs
		ReplyAll bool `json:"replyAll"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	original, err := s.loadMessage(ctx, input.messageRef)
	if err != nil {
		return nil, err
	}

	return s.composer.Reply(ctx, original, compose.ReplyRequest{
		Request:  input.request(),
		ReplyAll: input.ReplyAll,
	})
}

func (s *Server) forwardMessage(ctx context.Context, args map[string]interface{}) (interface{}, error) {
	var input struct {
		messageRef
		composeArgs
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}

	original, err := s.loadMessage(ctx, input.messageRef)
	if err != nil {
		return nil, err
	}

	return s.composer.Forward(ctx, original, input.request())
}
