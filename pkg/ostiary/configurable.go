package ostiary

import "github.com/knadh/koanf/v2"

// Configurable is implemented by modules that can load configuration from koanf.
type Configurable interface {
	// ConfigPath returns the koanf path for this module's configuration.
	// Example: "components.logging.sink.default"
	ConfigPath() string

	// LoadConfig loads configuration from koanf into the module's config struct.
	LoadConfig(k *koanf.Koanf) error
}
