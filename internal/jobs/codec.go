package jobs

import (
	"encoding/json"
	"fmt"
	"reflect"

	"github.com/geocoder89/coursehub/internal/domain/job"
)

func EncodePayload(t JobType, payload any) (json.RawMessage, error) {
	if err := ValidatePayload(t, payload); err != nil {
		return nil, err
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return b, nil
}

// DecodePayload unmarshals j.Payload into the typed payload for j.Type. The
// result is a value, not a pointer, so callers can switch on the concrete
// payload type.
func DecodePayload(j job.Job) (Payload, error) {
	t := JobType(j.Type)
	newPayload, ok := registry[t]
	if !ok {
		return nil, ErrInvalidJobType
	}
	if len(j.Payload) == 0 {
		return nil, ErrInvalidJobPayload
	}

	ptr := newPayload()
	if err := json.Unmarshal(j.Payload, ptr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	p := reflect.ValueOf(ptr).Elem().Interface().(Payload)
	if err := ValidatePayload(t, p); err != nil {
		return nil, err
	}
	return p, nil
}
