package mscfb

import "fmt"

// Validation selects how strictly Open checks a file. Permissive repairs
// inconsistencies that real-world writers are known to produce and leaves
// directory cycle detection to traversal.
type Validation int

const (
	ValidationPermissive Validation = iota
	ValidationStrict
)

func (v Validation) IsStrict() bool {
	return v == ValidationStrict
}

func (v Validation) String() string {
	if v.IsStrict() {
		return "strict"
	}
	return "permissive"
}

// ParseValidation maps "strict" and "permissive" (or "") to a Validation.
func ParseValidation(s string) (Validation, error) {
	switch s {
	case "", "permissive":
		return ValidationPermissive, nil
	case "strict":
		return ValidationStrict, nil
	default:
		return ValidationPermissive, fmt.Errorf("unknown validation mode: %q", s)
	}
}
