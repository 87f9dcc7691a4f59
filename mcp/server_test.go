package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattt/mailbridge/internal/mailstore"
	"github.com/mattt/mailbridge/jsonrpc"
)

type memFolder struct {
	name     string
	uri      string
	children []mailstore.Folder
	messages []*mailstore.Message
}

func (f *memFolder) Name() string { return f.name }
func (f *memFolder) URI() string  { return f.uri }

func (f *memFolder) Children(ctx context.Context) ([]mailstore.Folder, error) {
	return f.children, nil
}

func (f *memFolder) Refresh(ctx context.Context) error { return nil }

func (f *memFolder) Messages(ctx context.Context) ([]mailstore.Header, error) {
	headers := make([]mailstore.Header, len(f.messages))
	for i, m := range f.messages {
		headers[i] = m.Header
	}
	return headers, nil
}

type memStore struct {
	accounts  []mailstore.Account
	roots     map[string]*memFolder
	folders   map[string]*memFolder
	calendars []mailstore.Calendar
	contacts  []mailstore.Contact
	opened    []mailstore.ComposeFields
}

var _ mailstore.Store = (*memStore)(nil)

func (s *memStore) Accounts(ctx context.Context) ([]mailstore.Account, error) {
	return s.accounts, nil
}

func (s *memStore) DefaultIdentity(ctx context.Context) (mailstore.Identity, error) {
	if ident, ok := s.accounts[0].DefaultIdentity(); ok {
		return ident, nil
	}
	return mailstore.Identity{}, mailstore.ErrNotFound
}

func (s *memStore) RootFolder(ctx context.Context, accountID string) (mailstore.Folder, error) {
	if root, ok := s.roots[accountID]; ok {
		return root, nil
	}
	return nil, mailstore.ErrNotFound
}

func (s *memStore) Folder(ctx context.Context, uri string) (mailstore.Folder, error) {
	if f, ok := s.folders[uri]; ok {
		return f, nil
	}
	return nil, mailstore.ErrNotFound
}

func (s *memStore) Message(ctx context.Context, folderURI, messageID string) (*mailstore.Message, error) {
	f, ok := s.folders[folderURI]
	if !ok {
		return nil, mailstore.ErrNotFound
	}
	for _, m := range f.messages {
		if m.MessageID == mailstore.NormalizeMessageID(messageID) {
			return m, nil
		}
	}
	return nil, mailstore.ErrNotFound
}

func (s *memStore) SetRead(ctx context.Context, folderURI, messageID string, read bool) error {
	m, err := s.Message(ctx, folderURI, messageID)
	if err != nil {
		return err
	}
	m.Read = read
	return nil
}

func (s *memStore) OpenCompose(ctx context.Context, fields mailstore.ComposeFields) error {
	s.opened = append(s.opened, fields)
	return nil
}

func (s *memStore) Calendars(ctx context.Context) ([]mailstore.Calendar, error) {
	if s.calendars == nil {
		return nil, fmt.Errorf("calendars: %w", mailstore.ErrUnavailable)
	}
	return s.calendars, nil
}

func (s *memStore) Contacts(ctx context.Context) ([]mailstore.Contact, error) {
	return s.contacts, nil
}

// newMemStore builds one account with 5 messages in INBOX and 5 in
// INBOX/Archive, one hour apart and interleaved.
func newMemStore() *memStore {
	base := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	inbox := &memFolder{name: "INBOX", uri: "mailbox://work/INBOX"}
	archive := &memFolder{name: "Archive", uri: "mailbox://work/INBOX/Archive"}
	inbox.children = []mailstore.Folder{archive}

	for i := 0; i < 10; i++ {
		folder := inbox
		if i%2 == 1 {
			folder = archive
		}
		folder.messages = append(folder.messages, &mailstore.Message{
			Header: mailstore.Header{
				MessageID:  fmt.Sprintf("msg-%d@example.com", i),
				Subject:    fmt.Sprintf("Update %d", i),
				Author:     "Alice <a@x.com>",
				Recipients: `me@x.com, "Doe, Jane" <b@x.com>`,
				CcList:     "a@x.com",
				Date:       base.Add(time.Duration(i) * time.Hour),
			},
			FolderURI: folder.uri,
			Body:      fmt.Sprintf("Body %d", i),
		})
	}

	root := &memFolder{name: "work", uri: "mailbox://work", children: []mailstore.Folder{inbox}}
	return &memStore{
		accounts: []mailstore.Account{{
			ID:   "work",
			Name: "Work",
			Identities: []mailstore.Identity{
				{ID: "w1", Name: "Me", Email: "me@x.com", AccountID: "work"},
			},
		}},
		roots: map[string]*memFolder{"work": root},
		folders: map[string]*memFolder{
			root.uri:    root,
			inbox.uri:   inbox,
			archive.uri: archive,
		},
		contacts: []mailstore.Contact{
			{Name: "Jane Doe", Email: "b@x.com", AddressBook: "Personal"},
			{Name: "Bob", Email: "bob@x.com", AddressBook: "Work"},
		},
	}
}

func newTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := newMemStore()
	server, err := NewServer(store, WithServerInfo("mailbridge", "1.2.3"))
	require.NoError(t, err)
	return server, store
}

func call(t *testing.T, s *Server, method string, params interface{}) jsonrpc.Response {
	t.Helper()
	var raw json.RawMessage
	if params != nil {
		data, err := json.Marshal(params)
		require.NoError(t, err)
		raw = data
	}
	return s.Handle(context.Background(), jsonrpc.NewRequest(method, raw, 1))
}

// callTool invokes a tool and decodes the JSON text of its result.
func callTool(t *testing.T, s *Server, name string, args map[string]interface{}) map[string]interface{} {
	t.Helper()
	resp := call(t, s, "tools/call", ToolCallParams{Name: name, Arguments: args})
	require.Nil(t, resp.Error)

	result, ok := resp.Result.(CallToolResult)
	require.True(t, ok, "unexpected result type %T", resp.Result)
	require.Len(t, result.Content, 1)
	assert.Equal(t, "text", result.Content[0].Type)

	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(result.Content[0].Text), &payload))
	return payload
}

func TestServer_Initialize(t *testing.T) {
	s, _ := newTestServer(t)
	resp := call(t, s, "initialize", map[string]interface{}{})

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"jsonrpc": "2.0",
		"id": 1,
		"result": {
			"protocolVersion": "2024-11-05",
			"capabilities": {"tools": {}},
			"serverInfo": {"name": "mailbridge", "version": "1.2.3"}
		}
	}`, string(data))
}

func TestServer_Ping(t *testing.T) {
	s, _ := newTestServer(t)
	data, err := json.Marshal(call(t, s, "ping", nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"jsonrpc":"2.0","id":1,"result":{}}`, string(data))
}

func TestServer_ToolsList(t *testing.T) {
	s, _ := newTestServer(t)
	resp := call(t, s, "tools/list", nil)
	require.Nil(t, resp.Error)

	list, ok := resp.Result.(ToolsListResponse)
	require.True(t, ok)

	var names []string
	for _, tool := range list.Tools {
		names = append(names, tool.Name)
		assert.Equal(t, "object", tool.InputSchema.Type, tool.Name)
		assert.NotEmpty(t, tool.Description, tool.Name)
	}
	assert.Equal(t, []string{
		"listAccounts", "listFolders", "searchMessages", "getMessage", "sendMail",
		"replyToMessage", "forwardMessage", "markAsRead", "listCalendars", "searchContacts",
	}, names)

	data, err := json.Marshal(list.Tools[3])
	require.NoError(t, err)
	assert.Contains(t, string(data), `"required":["messageId","folderPath"]`)
}

func TestServer_ProtocolErrors(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name    string
		method  string
		params  interface{}
		message string
	}{
		{"missing tool name", "tools/call", map[string]interface{}{}, "Missing tool name"},
		{"missing params", "tools/call", nil, "Missing tool name"},
		{"unknown tool", "tools/call", ToolCallParams{Name: "deleteEverything"}, "Unknown tool: deleteEverything"},
		{"unknown method", "resources/list", nil, "Method not found: resources/list"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := call(t, s, tt.method, tt.params)
			require.NotNil(t, resp.Error)
			assert.Equal(t, jsonrpc.ErrServer, resp.Error.Code)
			assert.Equal(t, tt.message, resp.Error.Message)
			assert.Equal(t, 1, resp.ID.Value())
		})
	}
}

func TestServer_SearchMessages(t *testing.T) {
	s, _ := newTestServer(t)

	payload := callTool(t, s, "searchMessages", map[string]interface{}{"query": "", "maxResults": 5})
	assert.Equal(t, float64(5), payload["count"])

	messages := payload["messages"].([]interface{})
	require.Len(t, messages, 5)

	var dates []string
	for _, m := range messages {
		record := m.(map[string]interface{})
		dates = append(dates, record["date"].(string))
		assert.NotContains(t, record, "sortKey")
	}
	assert.Equal(t, []string{
		"2024-03-01T17:00:00.000Z",
		"2024-03-01T16:00:00.000Z",
		"2024-03-01T15:00:00.000Z",
		"2024-03-01T14:00:00.000Z",
		"2024-03-01T13:00:00.000Z",
	}, dates)

	first := messages[0].(map[string]interface{})
	assert.Equal(t, "msg-9@example.com", first["id"])
	assert.Equal(t, "Archive", first["folder"])
	assert.Equal(t, "mailbox://work/INBOX/Archive", first["folderPath"])
}

func TestServer_SearchMessagesScopes(t *testing.T) {
	s, _ := newTestServer(t)

	payload := callTool(t, s, "searchMessages", map[string]interface{}{"folderPath": "mailbox://work/INBOX/Archive"})
	assert.Equal(t, float64(5), payload["count"])

	payload = callTool(t, s, "searchMessages", map[string]interface{}{"accountId": "home"})
	assert.Equal(t, "Account not found: home", payload["error"])

	payload = callTool(t, s, "searchMessages", map[string]interface{}{"startDate": "soon"})
	assert.Contains(t, payload["error"], "Invalid startDate")
}

func TestServer_InvalidArguments(t *testing.T) {
	s, _ := newTestServer(t)

	payload := callTool(t, s, "searchMessages", map[string]interface{}{"maxResults": "five"})
	assert.Contains(t, payload["error"], "Invalid arguments")

	payload = callTool(t, s, "getMessage", map[string]interface{}{"messageId": "msg-1@example.com"})
	assert.Contains(t, payload["error"], "Invalid arguments")
}

func TestServer_GetMessage(t *testing.T) {
	s, _ := newTestServer(t)

	payload := callTool(t, s, "getMessage", map[string]interface{}{
		"messageId":  "<msg-2@example.com>",
		"folderPath": "mailbox://work/INBOX",
	})
	assert.Equal(t, "msg-2@example.com", payload["id"])
	assert.Equal(t, "Body 2", payload["body"])
	assert.Equal(t, "text", payload["bodyType"])
	assert.Equal(t, "2024-03-01T10:00:00.000Z", payload["date"])
	assert.Equal(t, []interface{}{}, payload["attachments"])

	payload = callTool(t, s, "getMessage", map[string]interface{}{
		"messageId":  "msg-2@example.com",
		"folderPath": "mailbox://work/Nowhere",
	})
	assert.Equal(t, "Folder not found: mailbox://work/Nowhere", payload["error"])

	payload = callTool(t, s, "getMessage", map[string]interface{}{
		"messageId":  "nope",
		"folderPath": "mailbox://work/INBOX",
	})
	assert.Equal(t, "Message not found: nope in mailbox://work/INBOX", payload["error"])
}

func TestServer_MarkAsRead(t *testing.T) {
	s, store := newTestServer(t)
	ref := map[string]interface{}{"messageId": "msg-0@example.com", "folderPath": "mailbox://work/INBOX"}

	payload := callTool(t, s, "markAsRead", ref)
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, true, payload["read"])
	assert.True(t, store.folders["mailbox://work/INBOX"].messages[0].Read)

	ref["read"] = false
	payload = callTool(t, s, "markAsRead", ref)
	assert.Equal(t, false, payload["read"])
	assert.False(t, store.folders["mailbox://work/INBOX"].messages[0].Read)
}

func TestServer_ReplyAll(t *testing.T) {
	s, store := newTestServer(t)

	payload := callTool(t, s, "replyToMessage", map[string]interface{}{
		"messageId":  "msg-0@example.com",
		"folderPath": "mailbox://work/INBOX",
		"body":       "Thanks!",
		"replyAll":   true,
	})
	assert.Equal(t, true, payload["success"])
	assert.Equal(t, "new", payload["composeType"])

	require.Len(t, store.opened, 1)
	fields := store.opened[0]
	assert.Equal(t, mailstore.ComposeTypeNew, fields.Type)
	assert.Equal(t, "Alice <a@x.com>", fields.To)
	assert.Equal(t, "b@x.com", fields.Cc)
	assert.Equal(t, "Re: Update 0", fields.Subject)
	assert.Equal(t, "<msg-0@example.com>", fields.InReplyTo)
	assert.True(t, strings.HasPrefix(fields.Body, "Thanks!<br><br>On "))
}

func TestServer_SendMailAndForward(t *testing.T) {
	s, store := newTestServer(t)

	payload := callTool(t, s, "sendMail", map[string]interface{}{
		"to":          "bob@x.com",
		"subject":     "Hi",
		"body":        "Grüße",
		"attachments": []interface{}{"/definitely/missing.txt"},
	})
	assert.Equal(t, true, payload["success"])
	attachments := payload["attachments"].(map[string]interface{})
	assert.Equal(t, float64(0), attachments["added"])
	assert.Equal(t, []interface{}{"/definitely/missing.txt"}, attachments["failed"])
	assert.Equal(t, "Gr&#252;&#223;e", store.opened[0].Body)

	payload = callTool(t, s, "sendMail", map[string]interface{}{"to": "bob@x.com"})
	assert.Contains(t, payload["error"], "Invalid arguments")

	payload = callTool(t, s, "forwardMessage", map[string]interface{}{
		"messageId":  "msg-1@example.com",
		"folderPath": "mailbox://work/INBOX/Archive",
		"to":         "carol@x.com",
	})
	assert.Equal(t, true, payload["success"])
	require.Len(t, store.opened, 2)
	assert.Equal(t, "Fwd: Update 1", store.opened[1].Subject)
}

func TestServer_Directory(t *testing.T) {
	s, _ := newTestServer(t)

	payload := callTool(t, s, "listAccounts", nil)
	accounts := payload["accounts"].([]interface{})
	require.Len(t, accounts, 1)
	assert.Equal(t, "work", accounts[0].(map[string]interface{})["id"])

	payload = callTool(t, s, "listFolders", nil)
	folders := payload["folders"].([]interface{})
	require.Len(t, folders, 2)
	assert.Equal(t, "mailbox://work/INBOX", folders[0].(map[string]interface{})["path"])
	assert.Equal(t, float64(2), folders[1].(map[string]interface{})["depth"])

	payload = callTool(t, s, "listCalendars", nil)
	assert.Equal(t, "Calendar support is unavailable", payload["error"])

	payload = callTool(t, s, "searchContacts", map[string]interface{}{"query": "JANE"})
	assert.Equal(t, float64(1), payload["count"])

	payload = callTool(t, s, "searchContacts", map[string]interface{}{})
	assert.Contains(t, payload["error"], "Invalid arguments")
}

func TestParseToolKind(t *testing.T) {
	for k := ToolKind(0); k < numToolKinds; k++ {
		got, ok := ParseToolKind(k.String())
		assert.True(t, ok)
		assert.Equal(t, k, got)
	}

	_, ok := ParseToolKind("listcalendars")
	assert.False(t, ok)
	assert.Equal(t, "ToolKind(99)", ToolKind(99).String())
}
