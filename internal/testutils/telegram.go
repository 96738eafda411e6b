package testutils

import (
	"context"
	"errors"
	"sync"

	tgbot "github.com/go-telegram/bot"
	tgmodels "github.com/go-telegram/bot/models"
)

// FakeMessenger записывает исходящие вызовы Bot API вместо отправки
type FakeMessenger struct {
	mu       sync.Mutex
	messages []*tgbot.SendMessageParams
	answers  []*tgbot.AnswerCallbackQueryParams
	fail     bool
}

// FailSends заставляет SendMessage возвращать ошибку
func (m *FakeMessenger) FailSends(fail bool) {
	m.mu.Lock()
	m.fail = fail
	m.mu.Unlock()
}

// SendMessage запоминает сообщение
func (m *FakeMessenger) SendMessage(ctx context.Context, params *tgbot.SendMessageParams) (*tgmodels.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return nil, errors.New("telegram unavailable")
	}
	m.messages = append(m.messages, params)
	return &tgmodels.Message{ID: len(m.messages)}, nil
}

// AnswerCallbackQuery запоминает ответ на callback
func (m *FakeMessenger) AnswerCallbackQuery(ctx context.Context, params *tgbot.AnswerCallbackQueryParams) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.answers = append(m.answers, params)
	return true, nil
}

// Messages возвращает копию отправленных сообщений
func (m *FakeMessenger) Messages() []*tgbot.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*tgbot.SendMessageParams(nil), m.messages...)
}

// Texts возвращает тексты отправленных сообщений
func (m *FakeMessenger) Texts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	texts := make([]string, 0, len(m.messages))
	for _, p := range m.messages {
		texts = append(texts, p.Text)
	}
	return texts
}

// Last возвращает последнее сообщение или nil
func (m *FakeMessenger) Last() *tgbot.SendMessageParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.messages) == 0 {
		return nil
	}
	return m.messages[len(m.messages)-1]
}

// Answers возвращает копию ответов на callback query
func (m *FakeMessenger) Answers() []*tgbot.AnswerCallbackQueryParams {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*tgbot.AnswerCallbackQueryParams(nil), m.answers...)
}

// Reset очищает записанные вызовы
func (m *FakeMessenger) Reset() {
	m.mu.Lock()
	m.messages = nil
	m.answers = nil
	m.mu.Unlock()
}
