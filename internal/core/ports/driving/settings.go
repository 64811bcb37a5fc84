package driving

// Setting is one known configuration key.
type Setting struct {
	Key         string `json:"key"`
	Value       any    `json:"value,omitempty"`
	Set         bool   `json:"set"`
	Description string `json:"description"`
}

// SettingsService reads and writes the user's configuration file.
type SettingsService interface {
	// Get returns a known key and its stored value.
	Get(key string) (*Setting, error)

	// Set parses raw for key, validates it and persists it.
	Set(key, raw string) error

	// Unset removes key so the default applies again.
	Unset(key string) error

	// List returns every known key.
	List() []Setting

	// Path returns the configuration file path.
	Path() string
}
