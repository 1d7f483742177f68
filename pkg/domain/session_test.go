package domain

import (
	"errors"
	"testing"
	"time"
)

func TestSessionEnvelopeKeepsStepFields(t *testing.T) {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	in := EnteringPhone{Date: "2024-06-01", Slot: "09:00-10:00", Name: "Anna"}

	data, err := EncodeSession(in, at)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out, updatedAt, err := DecodeSession(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	got, ok := out.(EnteringPhone)
	if !ok {
		t.Fatalf("decoded type = %T, want EnteringPhone", out)
	}
	if got != in {
		t.Fatalf("decoded = %+v, want %+v", got, in)
	}
	if !updatedAt.Equal(at) {
		t.Fatalf("updatedAt = %v, want %v", updatedAt, at)
	}
}

func TestDecodeSessionRejectsMissingFields(t *testing.T) {
	cases := []string{
		`{"step":"selecting_time"}`,
		`{"step":"entering_name","date":"2024-06-01"}`,
		`{"step":"entering_phone","date":"2024-06-01","slot":"09:00-10:00"}`,
		`{"step":"confirming_booking","date":"2024-06-01","slot":"09:00-10:00","name":"Anna"}`,
		`{"step":"dancing"}`,
		`not json`,
	}
	for _, raw := range cases {
		if _, _, err := DecodeSession([]byte(raw)); !errors.Is(err, ErrSessionCorrupted) {
			t.Fatalf("DecodeSession(%s) err = %v, want ErrSessionCorrupted", raw, err)
		}
	}
}

func TestStepOf(t *testing.T) {
	if StepOf(nil) != StepIdle {
		t.Fatalf("nil session should be idle")
	}
	if StepOf(ConfirmingBooking{}) != StepConfirmingBooking {
		t.Fatalf("unexpected step for ConfirmingBooking")
	}
}
