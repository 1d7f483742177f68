package app

import (
	"errors"
	"fmt"

	"slotbot/pkg/domain"
)

var (
	// ErrInvalidInput is the parent of every validation failure.
	ErrInvalidInput = errors.New("invalid input")
	ErrInvalidName  = fmt.Errorf("%w: name", ErrInvalidInput)
	ErrInvalidPhone = fmt.Errorf("%w: phone", ErrInvalidInput)
	ErrInvalidDate  = fmt.Errorf("%w: date", ErrInvalidInput)
	ErrInvalidSlot  = fmt.Errorf("%w: slot", ErrInvalidInput)

	// ErrSlotUnavailable indicates the chosen slot is already booked.
	ErrSlotUnavailable = errors.New("slot unavailable")
	// ErrNoSlots indicates a date has no free slot left.
	ErrNoSlots = fmt.Errorf("%w: no free slots on date", ErrSlotUnavailable)

	ErrSessionCorrupted = domain.ErrSessionCorrupted
	ErrNotFound         = errors.New("booking not found")
	ErrAuthFailed       = errors.New("admin authentication failed")
	// ErrWrongStep indicates the operation does not apply to the user's current step.
	ErrWrongStep   = errors.New("operation not valid in current step")
	ErrForbidden   = errors.New("admin authorization required")
	ErrRateLimited = errors.New("too many attempts")
)
