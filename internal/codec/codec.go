package codec

import (
	"encoding/base64"
	"fmt"
)

type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// Decode rejects input that is not canonical padded base64 and never returns a partial result.
func Decode(text string) ([]byte, error) {
	data, err := base64.StdEncoding.Strict().DecodeString(text)
	if err != nil {
		return nil, &DecodeError{Format: "base64", Err: err}
	}
	return data, nil
}
