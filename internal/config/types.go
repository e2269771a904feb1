package config

import "encoding/json"

const redacted = "[REDACTED]"

// Secret is a credential read from configuration, such as the Qdrant API key.
// Formatting and marshaling always yield "[REDACTED]"; only Value returns the
// credential itself.
type Secret string

func (s Secret) masked() string {
	if s == "" {
		return ""
	}
	return redacted
}

func (s Secret) String() string   { return s.masked() }
func (s Secret) GoString() string { return "Secret(" + redacted + ")" }

// Value returns the credential for handing to a client library.
func (s Secret) Value() string { return string(s) }

// IsSet reports whether a credential was configured.
func (s Secret) IsSet() bool { return s != "" }

func (s Secret) MarshalJSON() ([]byte, error) { return json.Marshal(s.masked()) }
func (s Secret) MarshalText() ([]byte, error) { return []byte(s.masked()), nil }

// UnmarshalText stores the raw value read from YAML or the environment.
func (s *Secret) UnmarshalText(text []byte) error {
	*s = Secret(text)
	return nil
}
