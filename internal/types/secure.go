package types

// redactedPlaceholder is what SecretString renders as anywhere a secret
// could leak into logs or serialized output.
const redactedPlaceholder = "[REDACTED]"

var redactedJSON = []byte(`"` + redactedPlaceholder + `"`)

// SecretString wraps sensitive configuration values (connection strings,
// API keys, SMTP passwords) so that accidental logging or JSON serialization
// emits a redacted placeholder instead of the raw value.
type SecretString string

// String returns a redacted placeholder instead of the raw value. Invoked by
// fmt and slog through the fmt.Stringer interface.
func (s SecretString) String() string {
	return redactedPlaceholder
}

// MarshalJSON returns the redacted placeholder as a JSON string.
func (s SecretString) MarshalJSON() ([]byte, error) {
	return redactedJSON, nil
}

// Unmask returns the raw plaintext value. Limited to the call sites that
// genuinely need the secret: connection setup and Authorization headers.
func (s SecretString) Unmask() string {
	return string(s)
}

// IsEmpty reports whether the secret has no value.
func (s SecretString) IsEmpty() bool {
	return len(s) == 0
}
