package swish

import (
	"strings"

	"github.com/google/uuid"
)

// NewInstructionID returns a random instruction identifier in the form the
// provider expects: 32 uppercase hexadecimal characters.
func NewInstructionID() string {
	id := uuid.New()
	return strings.ToUpper(strings.ReplaceAll(id.String(), "-", ""))
}
