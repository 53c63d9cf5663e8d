package validator

import (
	"strings"

	"github.com/OpenGG/dhop/internal/dhop/domain"
)

// Validator validates location names.
type Validator struct {
	reserved map[string]struct{}
}

// New creates a Validator that rejects the given reserved command words.
func New(reserved []string) *Validator {
	set := make(map[string]struct{}, len(reserved))
	for _, word := range reserved {
		set[word] = struct{}{}
	}
	return &Validator{reserved: set}
}

// ValidateName validates a location name.
//
// The function checks for:
//   - Empty names or whitespace-only names
//   - Dot navigation (. or ..)
//   - Null bytes
//   - Non-printable characters
//   - Path separators, which the resolver uses to split suffixes off a name
//   - Reserved command words, which would shadow the location on the command line
func (v *Validator) ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return domain.ErrNameEmpty
	}
	if trimmed == "." || trimmed == ".." {
		return domain.ErrNameDot
	}
	if strings.ContainsRune(trimmed, 0) {
		return domain.ErrNameNullByte
	}
	for _, r := range trimmed {
		if r < 0x20 || r == 0x7f {
			return domain.ErrNameNonPrintable
		}
	}
	if strings.ContainsAny(trimmed, `/\`) {
		return domain.ErrNameSeparator
	}
	if v.IsReserved(trimmed) {
		return domain.ErrNameReserved
	}
	return nil
}

// NormalizeName trims whitespace and validates the name.
func (v *Validator) NormalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if err := v.ValidateName(trimmed); err != nil {
		return "", err
	}
	return trimmed, nil
}

// IsReserved reports whether word is a command word.
func (v *Validator) IsReserved(word string) bool {
	_, ok := v.reserved[word]
	return ok
}
