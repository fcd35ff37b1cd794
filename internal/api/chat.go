package api

import (
	"net/http"
	"strconv"

	"github.com/dcgate/dcgate/internal/domain"
)

// registerChatHandlers wires the shared message-cache surface onto a module.
// Hubs and private chats expose the same sections; hubs additionally take
// status messages through sendStatus.
func registerChatHandlers(m *Module, chat domain.Chat, sendStatus func(text string) error) {
	m.Handle("messages", http.MethodGet, []ParamMatcher{NumParam}, false, func(req *Request) (any, error) {
		max, err := strconv.Atoi(req.Param(0))
		if err != nil {
			return nil, domain.Invalidf("invalid message count %q", req.Param(0))
		}
		messages := chat.Messages(max)
		out := make([]domain.Message, 0, len(messages))
		out = append(out, messages...)
		return out, nil
	})

	m.Handle("message", http.MethodPost, nil, true, func(req *Request) (any, error) {
		text, err := requiredField[string](req.Body, "text")
		if err != nil {
			return nil, err
		}
		return nil, chat.SendMessage(text)
	})

	if sendStatus != nil {
		m.Handle("status", http.MethodPost, nil, true, func(req *Request) (any, error) {
			text, err := requiredField[string](req.Body, "text")
			if err != nil {
				return nil, err
			}
			return nil, sendStatus(text)
		})
	}

	m.Handle("read", http.MethodPost, nil, false, func(req *Request) (any, error) {
		chat.SetRead()
		return nil, nil
	})

	m.Handle("clear", http.MethodPost, nil, false, func(req *Request) (any, error) {
		chat.Clear()
		return nil, nil
	})
}
