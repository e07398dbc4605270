package transport

import (
	"bytes"
	"encoding/json"
	"errors"
)

// ErrMalformedBody is returned by DecodeObject for anything other than a
// non-empty JSON object whose known keys carry strings or null.
var ErrMalformedBody = errors.New("malformed request body")

// AddGuestRequest is the body of POST /add-guest.
type AddGuestRequest struct {
	Name        OptionalString `json:"name"`
	Lastname    OptionalString `json:"lastname"`
	PhoneNumber OptionalString `json:"phoneNumber"`
	Email       OptionalString `json:"email"`
	Country     OptionalString `json:"country"`
}

// EditGuestRequest is the body of POST /edit-guest. Every field except
// CurrentPhoneNumber is applied only when present.
type EditGuestRequest struct {
	CurrentPhoneNumber OptionalString `json:"currentPhoneNumber"`
	NewName            OptionalString `json:"newName"`
	NewLastname        OptionalString `json:"newLastname"`
	NewPhoneNumber     OptionalString `json:"newPhoneNumber"`
	NewEmail           OptionalString `json:"newEmail"`
}

// GuestResponse is the serialized guest. Absent email and country render as null.
type GuestResponse struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Lastname string  `json:"lastname"`
	Phone    string  `json:"phone"`
	Email    *string `json:"email"`
	Country  *string `json:"country"`
}

// AckResponse acknowledges a delete.
type AckResponse struct {
	Ack string `json:"ack"`
}

// WelcomeResponse is served on the root path.
type WelcomeResponse struct {
	Message string `json:"message"`
}

// DecodeObject decodes body into dst. The body must be a JSON object with at
// least one key.
func DecodeObject(body []byte, dst interface{}) error {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(bytes.TrimSpace(body), &keys); err != nil || len(keys) == 0 {
		return ErrMalformedBody
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return ErrMalformedBody
	}
	return nil
}
