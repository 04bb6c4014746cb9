package audio

import "fmt"

// InvalidToneError is returned when a tone can't be scheduled as described.
type InvalidToneError struct {
	Reason string
}

func (err InvalidToneError) Error() string {
	return fmt.Sprintf("invalid tone: %s", err.Reason)
}

// VoicesExhaustedError is returned when the engine already renders its maximum
// number of voices.
type VoicesExhaustedError struct {
	Max int
}

func (err VoicesExhaustedError) Error() string {
	return fmt.Sprintf("all %d voices are in use", err.Max)
}
