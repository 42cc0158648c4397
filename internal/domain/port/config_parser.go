package port

// ConfigParser validates raw tunnel configuration text.
// A validation failure rejects the file, never the whole pass.
type ConfigParser interface {
	Validate(text []byte) error
}
