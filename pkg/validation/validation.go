package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxTextLength bounds relayed text; WhatsApp rejects longer messages.
const MaxTextLength = 65536

var ErrTextRequired = errors.New("text is required")

// ValidateText ensures relay text is present and within bounds.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrTextRequired
	}
	if !utf8.ValidString(text) {
		return errors.New("text must be valid UTF-8")
	}
	if n := utf8.RuneCountInString(text); n > MaxTextLength {
		return fmt.Errorf("text is %d characters, the limit is %d", n, MaxTextLength)
	}
	return nil
}
