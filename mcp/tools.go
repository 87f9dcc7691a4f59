package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolKind identifies one of the closed set of tools
type ToolKind int

const (
	ToolListAccounts ToolKind = iota
	ToolListFolders
	ToolSearchMessages
	ToolGetMessage
	ToolSendMail
	ToolReplyToMessage
	ToolForwardMessage
	ToolMarkAsRead
	ToolListCalendars
	ToolSearchContacts

	numToolKinds
)

var toolNames = [numToolKinds]string{
	ToolListAccounts:   "listAccounts",
	ToolListFolders:    "listFolders",
	ToolSearchMessages: "searchMessages",
	ToolGetMessage:     "getMessage",
	ToolSendMail:       "sendMail",
	ToolReplyToMessage: "replyToMessage",
	ToolForwardMessage: "forwardMessage",
	ToolMarkAsRead:     "markAsRead",
	ToolListCalendars:  "listCalendars",
	ToolSearchContacts: "searchContacts",
}

func (k ToolKind) String() string {
	if k < 0 || k >= numToolKinds {
		return fmt.Sprintf("ToolKind(%d)", int(k))
	}
	return toolNames[k]
}

// ParseToolKind looks up a tool by name
func ParseToolKind(name string) (ToolKind, bool) {
	for k, n := range toolNames {
		if n == name {
			return ToolKind(k), true
		}
	}
	return 0, false
}

// toolFunc runs a tool with validated arguments
type toolFunc func(ctx context.Context, args map[string]interface{}) (interface{}, error)

type registeredTool struct {
	descriptor Tool
	schema     *jsonschema.Resolved
	run        toolFunc
}

// registry maps every ToolKind to its handler. It is not modified after
// newRegistry returns.
type registry struct {
	tools [numToolKinds]*registeredTool
}

type errorPayload struct {
	Error string `json:"error"`
}

func newRegistry(s *Server) (*registry, error) {
	handlers := [numToolKinds]toolFunc{
		ToolListAccounts:   s.listAccounts,
		ToolListFolders:    s.listFolders,
		ToolSearchMessages: s.searchMessages,
		ToolGetMessage:     s.getMessage,
		ToolSendMail:       s.sendMail,
		ToolReplyToMessage: s.replyToMessage,
		ToolForwardMessage: s.forwardMessage,
		ToolMarkAsRead:     s.markAsRead,
		ToolListCalendars:  s.listCalendars,
		ToolSearchContacts: s.searchContacts,
	}

	r := &registry{}
	for k, desc := range toolDescriptors() {
		resolved, err := desc.InputSchema.Resolve(nil)
		if err != nil {
			return nil, fmt.Errorf("schema of %s: %w", desc.Name, err)
		}
		r.tools[k] = &registeredTool{
			descriptor: desc,
			schema:     resolved,
			run:        handlers[k],
		}
	}
	return r, nil
}

func (r *registry) descriptors() []Tool {
	tools := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		tools = append(tools, t.descriptor)
	}
	return tools
}

// call validates args and runs the tool. Failures are returned as error
// payloads, never as errors.
func (r *registry) call(ctx context.Context, kind ToolKind, args map[string]interface{}) interface{} {
	t := r.tools[kind]
	if err := t.schema.Validate(args); err != nil {
		return errorPayload{Error: fmt.Sprintf("Invalid arguments: %v", err)}
	}

	result, err := t.run(ctx, args)
	if err != nil {
		return errorPayload{Error: err.Error()}
	}
	return result
}

// decodeArgs converts validated arguments into a typed struct
func decodeArgs(args map[string]interface{}, v interface{}) error {
	data, err := json.Marshal(args)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("Invalid arguments: %w", err)
	}
	return nil
}

// Schema helpers
func object(required []string, props map[string]*jsonschema.Schema) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:       "object",
		Properties: props,
		Required:   required,
	}
}

func stringProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{Type: "string", Description: desc}
}

func enumProp(desc, def string, values ...string) *jsonschema.Schema {
	enum := make([]interface{}, len(values))
	for i, v := range values {
		enum[i] = v
	}
	return &jsonschema.Schema{
		Type:        "string",
		Description: desc,
		Enum:        enum,
		Default:     json.RawMessage(fmt.Sprintf("%q", def)),
	}
}

func boolProp(desc string, def bool) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "boolean",
		Description: desc,
		Default:     json.RawMessage(fmt.Sprintf("%t", def)),
	}
}

// intProp declares an integer. Range limits are applied by clamping, so
// they are not part of the schema.
func intProp(desc string, def int) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "integer",
		Description: desc,
		Default:     json.RawMessage(fmt.Sprintf("%d", def)),
	}
}

func stringArrayProp(desc string) *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "array",
		Description: desc,
		Items:       &jsonschema.Schema{Type: "string"},
	}
}

func toolDescriptors() [numToolKinds]Tool {
	// Each schema node must appear once per tree, so shared properties are
	// built fresh for every tool.
	messageID := func() *jsonschema.Schema {
		return stringProp("Message-Id of the message, as returned by searchMessages")
	}
	folderPath := func() *jsonschema.Schema {
		return stringProp("URI of the folder the message was found in")
	}
	from := func() *jsonschema.Schema {
		return stringProp("Identity id or email address to send from")
	}
	attachments := func() *jsonschema.Schema {
		return stringArrayProp("Absolute paths of files to attach")
	}
	isHTML := func() *jsonschema.Schema {
		return boolProp("Whether body is HTML", false)
	}

	return [numToolKinds]Tool{
		ToolListAccounts: {
			Name:        "listAccounts",
			Title:       "List accounts",
			Description: "List mail accounts and their sending identities",
			InputSchema: object(nil, map[string]*jsonschema.Schema{}),
		},
		ToolListFolders: {
			Name:        "listFolders",
			Title:       "List folders",
			Description: "List the folder tree of one or all accounts",
			InputSchema: object(nil, map[string]*jsonschema.Schema{
				"accountId": stringProp("Only list folders of this account"),
			}),
		},
		ToolSearchMessages: {
			Name:        "searchMessages",
			Title:       "Search messages",
			Description: "Search messages by text and date across all folders",
			InputSchema: object(nil, map[string]*jsonschema.Schema{
				"query":      stringProp("Case-insensitive text matched against subject, author, recipients and cc"),
				"startDate":  stringProp("ISO-8601 date or date-time; only messages on or after it"),
				"endDate":    stringProp("ISO-8601 date or date-time; a date covers the whole day"),
				"maxResults": intProp("Maximum number of results, 1 to 200", 50),
				"sortOrder":  enumProp("Sort by date", "desc", "asc", "desc"),
				"accountId":  stringProp("Only search this account"),
				"folderPath": stringProp("Only search this folder and its subfolders"),
			}),
		},
		ToolGetMessage: {
			Name:        "getMessage",
			Title:       "Get message",
			Description: "Read a message's headers, body and attachment list",
			InputSchema: object([]string{"messageId", "folderPath"}, map[string]*jsonschema.Schema{
				"messageId":  messageID(),
				"folderPath": folderPath(),
			}),
		},
		ToolSendMail: {
			Name:        "sendMail",
			Title:       "Compose message",
			Description: "Open a new message draft for review. Nothing is sent.",
			InputSchema: object([]string{"to", "subject", "body"}, map[string]*jsonschema.Schema{
				"to":          stringProp("Comma-separated recipients"),
				"subject":     stringProp("Subject"),
				"body":        stringProp("Message body"),
				"cc":          stringProp("Comma-separated Cc recipients"),
				"bcc":         stringProp("Comma-separated Bcc recipients"),
				"isHtml":      isHTML(),
				"from":        from(),
				"attachments": attachments(),
			}),
		},
		ToolReplyToMessage: {
			Name:        "replyToMessage",
			Title:       "Reply to message",
			Description: "Open a threaded reply draft for review. Nothing is sent.",
			InputSchema: object([]string{"messageId", "folderPath", "body"}, map[string]*jsonschema.Schema{
				"messageId":   messageID(),
				"folderPath":  folderPath(),
				"body":        stringProp("Reply text, placed above the quoted original"),
				"replyAll":    boolProp("Also address the original recipients and Cc", false),
				"isHtml":      isHTML(),
				"to":          stringProp("Override the reply recipients"),
				"cc":          stringProp("Additional Cc recipients"),
				"bcc":         stringProp("Bcc recipients"),
				"from":        from(),
				"attachments": attachments(),
			}),
		},
		ToolForwardMessage: {
			Name:        "forwardMessage",
			Title:       "Forward message",
			Description: "Open a forward draft, with the original attachments, for review. Nothing is sent.",
			InputSchema: object([]string{"messageId", "folderPath", "to"}, map[string]*jsonschema.Schema{
				"messageId":   messageID(),
				"folderPath":  folderPath(),
				"to":          stringProp("Comma-separated recipients"),
				"body":        stringProp("Text placed above the forwarded message"),
				"cc":          stringProp("Comma-separated Cc recipients"),
				"bcc":         stringProp("Comma-separated Bcc recipients"),
				"isHtml":      isHTML(),
				"from":        from(),
				"attachments": attachments(),
			}),
		},
		ToolMarkAsRead: {
			Name:        "markAsRead",
			Title:       "Mark as read",
			Description: "Mark a message as read or unread",
			InputSchema: object([]string{"messageId", "folderPath"}, map[string]*jsonschema.Schema{
				"messageId":  messageID(),
				"folderPath": folderPath(),
				"read":       boolProp("Set to false to mark as unread", true),
			}),
		},
		ToolListCalendars: {
			Name:        "listCalendars",
			Title:       "List calendars",
			Description: "List available calendars",
			InputSchema: object(nil, map[string]*jsonschema.Schema{}),
		},
		ToolSearchContacts: {
			Name:        "searchContacts",
			Title:       "Search contacts",
			Description: "Search address books by name or email",
			InputSchema: object([]string{"query"}, map[string]*jsonschema.Schema{
				"query":      stringProp("Case-insensitive text matched against name and email"),
				"maxResults": intProp("Maximum number of results, 1 to 200", 50),
			}),
		},
	}
}
