package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrSessionCorrupted is returned when a stored session does not match its step.
var ErrSessionCorrupted = errors.New("session corrupted")

type Step string

const (
	StepIdle              Step = "idle"
	StepSelectingDate     Step = "selecting_date"
	StepSelectingTime     Step = "selecting_time"
	StepEnteringName      Step = "entering_name"
	StepEnteringPhone     Step = "entering_phone"
	StepConfirmingBooking Step = "confirming_booking"
)

// Session is the booking conversation state of one user.
// Each step is its own type and carries only the fields collected so far.
type Session interface {
	Step() Step
}

type SelectingDate struct{}

type SelectingTime struct {
	Date string
}

type EnteringName struct {
	Date string
	Slot string
}

type EnteringPhone struct {
	Date string
	Slot string
	Name string
}

type ConfirmingBooking struct {
	Date  string
	Slot  string
	Name  string
	Phone string
}

func (SelectingDate) Step() Step     { return StepSelectingDate }
func (SelectingTime) Step() Step     { return StepSelectingTime }
func (EnteringName) Step() Step      { return StepEnteringName }
func (EnteringPhone) Step() Step     { return StepEnteringPhone }
func (ConfirmingBooking) Step() Step { return StepConfirmingBooking }

// StepOf returns the step of s, StepIdle for a nil session.
func StepOf(s Session) Step {
	if s == nil {
		return StepIdle
	}
	return s.Step()
}

type sessionEnvelope struct {
	Step      Step      `json:"step"`
	Date      string    `json:"date,omitempty"`
	Slot      string    `json:"slot,omitempty"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// EncodeSession serializes a session into a JSON envelope.
func EncodeSession(s Session, updatedAt time.Time) ([]byte, error) {
	env := sessionEnvelope{UpdatedAt: updatedAt.UTC()}
	switch v := s.(type) {
	case SelectingDate:
		env.Step = StepSelectingDate
	case SelectingTime:
		env.Step = StepSelectingTime
		env.Date = v.Date
	case EnteringName:
		env.Step = StepEnteringName
		env.Date, env.Slot = v.Date, v.Slot
	case EnteringPhone:
		env.Step = StepEnteringPhone
		env.Date, env.Slot, env.Name = v.Date, v.Slot, v.Name
	case ConfirmingBooking:
		env.Step = StepConfirmingBooking
		env.Date, env.Slot, env.Name, env.Phone = v.Date, v.Slot, v.Name, v.Phone
	default:
		return nil, fmt.Errorf("encode session: unsupported type %T", s)
	}
	return json.Marshal(env)
}

// DecodeSession parses an envelope written by EncodeSession.
// Envelopes whose fields do not match the step yield ErrSessionCorrupted.
func DecodeSession(data []byte) (Session, time.Time, error) {
	var env sessionEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, time.Time{}, fmt.Errorf("%w: %v", ErrSessionCorrupted, err)
	}
	need := func(fields ...string) error {
		for _, f := range fields {
			if f == "" {
				return fmt.Errorf("%w: step %s is missing fields", ErrSessionCorrupted, env.Step)
			}
		}
		return nil
	}
	var (
		s   Session
		err error
	)
	switch env.Step {
	case StepSelectingDate:
		s = SelectingDate{}
	case StepSelectingTime:
		err = need(env.Date)
		s = SelectingTime{Date: env.Date}
	case StepEnteringName:
		err = need(env.Date, env.Slot)
		s = EnteringName{Date: env.Date, Slot: env.Slot}
	case StepEnteringPhone:
		err = need(env.Date, env.Slot, env.Name)
		s = EnteringPhone{Date: env.Date, Slot: env.Slot, Name: env.Name}
	case StepConfirmingBooking:
		err = need(env.Date, env.Slot, env.Name, env.Phone)
		s = ConfirmingBooking{Date: env.Date, Slot: env.Slot, Name: env.Name, Phone: env.Phone}
	default:
		return nil, time.Time{}, fmt.Errorf("%w: unknown step %q", ErrSessionCorrupted, env.Step)
	}
	if err != nil {
		return nil, time.Time{}, err
	}
	return s, env.UpdatedAt, nil
}
