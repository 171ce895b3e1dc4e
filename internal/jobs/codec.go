package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

func EncodePayload(t JobType, payload any) ([]byte, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobRatingReceived:
		_, ok := payload.(RatingReceivedPayload)

		if !ok {
			_, ok2 := payload.(*RatingReceivedPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}

	case JobWelcomeUser:
		_, ok := payload.(WelcomeUserPayload)

		if !ok {
			_, ok2 := payload.(*WelcomeUserPayload)

			if !ok2 {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals raw payload bytes into the correct typed payload struct.
func DecodePayload(t JobType, raw []byte) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(raw) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobRatingReceived:
		var p RatingReceivedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	case JobWelcomeUser:
		var p WelcomeUserPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobRatingReceived:
		var p RatingReceivedPayload
		switch v := payload.(type) {
		case RatingReceivedPayload:
			p = v
		case *RatingReceivedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.RatingID) == "" || trim(p.StoreID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	case JobWelcomeUser:
		var p WelcomeUserPayload
		switch v := payload.(type) {
		case WelcomeUserPayload:
			p = v
		case *WelcomeUserPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.UserID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
