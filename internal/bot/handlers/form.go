package handlers

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/go-telegram/bot/models"

	"github.com/region23/barbershop/internal/booking"
	"github.com/region23/barbershop/internal/bot/keyboard"
	botservice "github.com/region23/barbershop/internal/bot/service"
	"github.com/region23/barbershop/internal/calendar"
	"github.com/region23/barbershop/internal/validation"
	"github.com/region23/barbershop/pkg/logger"
)

// Подсказки шагов формы
const (
	MessageUseButtons  = "Use os botões abaixo para confirmar ou cancelar."
	MessageNameTooLong = "Nome muito longo."
	skipNotes          = "-"
)

// FormHandler ведет диалог сбора имени, телефона и observações
type FormHandler struct {
	service *botservice.Service
}

// NewFormHandler создает обработчик шагов формы
func NewFormHandler(service *botservice.Service) *FormHandler {
	return &FormHandler{service: service}
}

// Handle обрабатывает текст в зависимости от текущего шага
func (h *FormHandler) Handle(ctx context.Context, update *models.Update) {
	chatID := update.Message.Chat.ID
	text := update.Message.Text

	switch h.service.Session(chatID).Step() {
	case botservice.StepName:
		h.handleName(ctx, chatID, text)
	case botservice.StepPhone:
		h.HandlePhone(ctx, chatID, text)
	case botservice.StepNotes:
		h.handleNotes(ctx, chatID, text)
	case botservice.StepConfirm:
		h.send(ctx, chatID, MessageUseButtons, keyboard.CreateConfirmKeyboard())
	}
}

func (h *FormHandler) handleName(ctx context.Context, chatID int64, text string) {
	name := strings.TrimSpace(text)
	if name == "" {
		h.send(ctx, chatID, booking.MessageNameRequired, nil)
		return
	}
	if utf8.RuneCountInString(name) > validation.MaxUserNameLength {
		h.send(ctx, chatID, MessageNameTooLong, nil)
		return
	}

	session := h.service.Session(chatID)
	form := session.Widget.Form()
	form.Name = name
	session.Widget.UpdateForm(form)

	if session.Advance(botservice.StepName, botservice.StepPhone) {
		h.send(ctx, chatID, botservice.MessageAskPhone, keyboard.CreateContactKeyboard())
	}
}

// HandlePhone накладывает маску на телефон и переходит к observações.
// Используется и для текста, и для отправленного контакта.
func (h *FormHandler) HandlePhone(ctx context.Context, chatID int64, raw string) {
	session := h.service.Session(chatID)
	if session.Step() != botservice.StepPhone {
		return
	}

	phone := validation.FormatPhone(raw)
	if err := validation.ValidateMaskedPhone(phone); err != nil {
		h.service.Logger().Debug("Rejected phone input",
			logger.Int64("chat_id", chatID), logger.Error(err))
		h.send(ctx, chatID, booking.MessageInvalidPhone, nil)
		return
	}

	form := session.Widget.Form()
	form.Phone = phone
	session.Widget.UpdateForm(form)

	if session.Advance(botservice.StepPhone, botservice.StepNotes) {
		h.send(ctx, chatID, botservice.MessageAskNotes, keyboard.CreateRemoveKeyboard())
	}
}

func (h *FormHandler) handleNotes(ctx context.Context, chatID int64, text string) {
	notes := strings.TrimSpace(text)
	if notes == skipNotes {
		notes = ""
	}

	session := h.service.Session(chatID)
	w := session.Widget
	form := w.Form()
	form.Notes = notes
	w.UpdateForm(form)

	slot, open := w.Selected()
	if !open {
		session.SetStep(botservice.StepNone)
		return
	}

	if session.Advance(botservice.StepNotes, botservice.StepConfirm) {
		h.send(ctx, chatID, Summary(slot, form), keyboard.CreateConfirmKeyboard())
	}
}

// Summary резюме записи перед подтверждением
func Summary(slot booking.SelectedSlot, form booking.Form) string {
	var b strings.Builder
	b.WriteString(calendar.Recap(slot.Date, slot.Time))
	fmt.Fprintf(&b, "\nNome: %s\nTelefone: %s", form.Name, form.Phone)
	if form.Notes != "" {
		fmt.Fprintf(&b, "\nObservações: %s", form.Notes)
	}
	return b.String()
}

func (h *FormHandler) send(ctx context.Context, chatID int64, text string, markup models.ReplyMarkup) {
	if err := h.service.SendMessage(ctx, chatID, text, markup); err != nil {
		h.service.Logger().Error("Failed to send form prompt",
			logger.Int64("chat_id", chatID), logger.Error(err))
	}
}
