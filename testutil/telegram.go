// Package testutil holds shared test helpers: a Postgres fixture and a fake Telegram Bot API.
package testutil

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// TelegramCall is one Bot API request received by the mock server.
type TelegramCall struct {
	Method string
	Params url.Values
}

// Int returns a numeric parameter, or 0.
func (c TelegramCall) Int(key string) int64 {
	n, _ := strconv.ParseInt(c.Params.Get(key), 10, 64)
	return n
}

type telegramFailure struct {
	code        int
	description string
}

// MockTelegramServer fakes the Telegram Bot API over httptest.
type MockTelegramServer struct {
	*httptest.Server
	Token string

	mu       sync.Mutex
	calls    []TelegramCall
	nextID   int
	failures map[string]telegramFailure
	updates  []map[string]any
	seq      int
}

// NewMockTelegramServer starts a fake Bot API that answers getMe, sendMessage,
// forwardMessage, editMessageText, deleteMessage, answerCallbackQuery and getUpdates.
func NewMockTelegramServer(t *testing.T) *MockTelegramServer {
	t.Helper()
	m := &MockTelegramServer{
		Token:    "123456:TEST",
		nextID:   1000,
		failures: make(map[string]telegramFailure),
	}
	m.Server = httptest.NewServer(http.HandlerFunc(m.serve))
	t.Cleanup(m.Close)
	return m
}

// Endpoint returns the URL template expected by tgbotapi ("<base>/bot%s/%s").
func (m *MockTelegramServer) Endpoint() string { return m.URL + "/bot%s/%s" }

// Fail makes every later call of method fail with the given Bot API error.
func (m *MockTelegramServer) Fail(method string, code int, description string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[method] = telegramFailure{code: code, description: description}
}

// QueueUpdate schedules an update object for the next getUpdates poll. update_id is
// assigned automatically.
func (m *MockTelegramServer) QueueUpdate(update map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	update["update_id"] = m.seq
	m.updates = append(m.updates, update)
}

// Calls returns the recorded calls of one method (all calls when method is empty).
func (m *MockTelegramServer) Calls(method string) []TelegramCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []TelegramCall
	for _, c := range m.calls {
		if method == "" || c.Method == method {
			out = append(out, c)
		}
	}
	return out
}

func (m *MockTelegramServer) serve(w http.ResponseWriter, r *http.Request) {
	// Path: /bot<token>/<method>
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/"), "/")
	if len(parts) != 2 || parts[0] != "bot"+m.Token {
		writeTelegram(w, http.StatusUnauthorized, map[string]any{"ok": false, "error_code": 401, "description": "Unauthorized"})
		return
	}
	method := parts[1]
	if err := r.ParseForm(); err != nil {
		writeTelegram(w, http.StatusBadRequest, map[string]any{"ok": false, "error_code": 400, "description": "Bad Request: " + err.Error()})
		return
	}

	m.mu.Lock()
	if method != "getUpdates" {
		m.calls = append(m.calls, TelegramCall{Method: method, Params: r.PostForm})
	}
	failure, failing := m.failures[method]
	m.mu.Unlock()

	if failing {
		writeTelegram(w, http.StatusOK, map[string]any{"ok": false, "error_code": failure.code, "description": failure.description})
		return
	}

	switch method {
	case "getMe":
		writeTelegram(w, http.StatusOK, map[string]any{"ok": true, "result": map[string]any{
			"id": 1, "is_bot": true, "first_name": "reelbot", "username": "reelbot",
		}})
	case "sendMessage", "forwardMessage", "editMessageText":
		chatID, _ := strconv.ParseInt(r.PostForm.Get("chat_id"), 10, 64)
		id := m.messageID(r.PostForm)
		writeTelegram(w, http.StatusOK, map[string]any{"ok": true, "result": map[string]any{
			"message_id": id,
			"date":       time.Now().Unix(),
			"chat":       map[string]any{"id": chatID, "type": "channel"},
			"text":       r.PostForm.Get("text"),
		}})
	case "deleteMessage", "answerCallbackQuery":
		writeTelegram(w, http.StatusOK, map[string]any{"ok": true, "result": true})
	case "getUpdates":
		m.mu.Lock()
		pending := m.updates
		m.updates = nil
		m.mu.Unlock()
		if len(pending) == 0 {
			time.Sleep(20 * time.Millisecond)
			pending = []map[string]any{}
		}
		writeTelegram(w, http.StatusOK, map[string]any{"ok": true, "result": pending})
	default:
		writeTelegram(w, http.StatusNotFound, map[string]any{"ok": false, "error_code": 404, "description": "Not Found: method not found"})
	}
}

func (m *MockTelegramServer) messageID(params url.Values) int {
	if id, err := strconv.Atoi(params.Get("message_id")); err == nil && params.Get("from_chat_id") == "" {
		return id // edits keep their id
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return m.nextID
}

func writeTelegram(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body) //nolint:errcheck // test mock response
}
