package handlers

import (
	"context"
	"strings"

	"github.com/go-telegram/bot/models"

	botservice "github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/internal/validation"
	"github.com/region23/barbershop/pkg/logger"
)

// countryCode код страны, который Telegram добавляет к номеру контакта
const countryCode = "55"

// ContactHandler принимает телефон, отправленный кнопкой контакта
type ContactHandler struct {
	service *botservice.Service
	form    *FormHandler
}

// NewContactHandler создает новый обработчик контактов
func NewContactHandler(service *botservice.Service, form *FormHandler) *ContactHandler {
	return &ContactHandler{service: service, form: form}
}

// Handle обрабатывает сообщения с контактной информацией
func (h *ContactHandler) Handle(ctx context.Context, update *models.Update) {
	if update.Message == nil || update.Message.Contact == nil {
		return
	}

	chatID := update.Message.Chat.ID
	contact := update.Message.Contact

	if contact.PhoneNumber == "" {
		h.service.Logger().Warn("Received empty phone number", logger.Int64("chat_id", chatID))
		return
	}

	if h.service.Session(chatID).Step() != botservice.StepPhone {
		if err := h.service.SendSimpleMessage(ctx, chatID, botservice.MessageHelp); err != nil {
			h.service.Logger().Error("Failed to send help message",
				logger.Int64("chat_id", chatID), logger.Error(err))
		}
		return
	}

	h.form.HandlePhone(ctx, chatID, LocalPhone(contact.PhoneNumber))
}

// LocalPhone убирает код страны из международного номера
func LocalPhone(phone string) string {
	digits := validation.PhoneDigits(phone)
	if len(digits) > validation.MaxPhoneDigits && strings.HasPrefix(digits, countryCode) {
		return digits[len(countryCode):]
	}
	return digits
}
