package service

import (
	"sync"
	"time"

	"github.com/region23/barbershop/internal/booking"
)

// FormStep шаг диалога сбора данных клиента
type FormStep int

const (
	StepNone FormStep = iota
	StepName
	StepPhone
	StepNotes
	StepConfirm
)

func (s FormStep) String() string {
	switch s {
	case StepName:
		return "name"
	case StepPhone:
		return "phone"
	case StepNotes:
		return "notes"
	case StepConfirm:
		return "confirm"
	default:
		return "none"
	}
}

// Session состояние одного чата: собственный виджет записи и шаг формы
type Session struct {
	ChatID int64
	Widget *booking.Widget

	mu   sync.Mutex
	step FormStep

	// под мьютексом Service
	lastSeen time.Time
}

// Step возвращает текущий шаг формы
func (s *Session) Step() FormStep {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.step
}

// SetStep переводит диалог на шаг step
func (s *Session) SetStep(step FormStep) {
	s.mu.Lock()
	s.step = step
	s.mu.Unlock()
}

// Advance переходит с шага from на шаг to. Возвращает false, если
// диалог уже на другом шаге.
func (s *Session) Advance(from, to FormStep) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.step != from {
		return false
	}
	s.step = to
	return true
}
