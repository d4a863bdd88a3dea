package enums

import "fmt"

// VerificationMethod maps to the verification_method enum in Postgres.
type VerificationMethod string

const (
	VerificationMethodDNS     VerificationMethod = "dns"
	VerificationMethodMeta    VerificationMethod = "meta"
	VerificationMethodFile    VerificationMethod = "file"
	VerificationMethodDevTest VerificationMethod = "dev-test"
)

var validVerificationMethods = []VerificationMethod{
	VerificationMethodDNS,
	VerificationMethodMeta,
	VerificationMethodFile,
	VerificationMethodDevTest,
}

// String implements fmt.Stringer.
func (m VerificationMethod) String() string {
	return string(m)
}

// IsValid reports whether the value matches the canonical verification_method enum.
func (m VerificationMethod) IsValid() bool {
	for _, candidate := range validVerificationMethods {
		if candidate == m {
			return true
		}
	}
	return false
}

// IsCheckable reports whether the method can be dispatched to a live
// verification strategy. dev-test is recorded on rows seeded by tooling but
// is never accepted as a verify request input.
func (m VerificationMethod) IsCheckable() bool {
	switch m {
	case VerificationMethodDNS, VerificationMethodMeta, VerificationMethodFile:
		return true
	default:
		return false
	}
}

// ParseVerificationMethod converts raw input into VerificationMethod.
func ParseVerificationMethod(value string) (VerificationMethod, error) {
	for _, candidate := range validVerificationMethods {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid verification method %q", value)
}
