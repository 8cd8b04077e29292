package config

import "fmt"

// Category constants for component organization.
const (
	CategoryLogging = "logging"
	CategoryLoader  = "loader"
	CategorySource  = "source"
)

// DefaultInstanceName is the default instance name for components.
const DefaultInstanceName = "default"

// ComponentPath generates the config path for a component instance.
// Example: ComponentPath("logging", "sink", "default") -> "components.logging.sink.default"
func ComponentPath(category, componentType, instance string) string {
	if instance == "" {
		instance = DefaultInstanceName
	}
	return fmt.Sprintf("components.%s.%s.%s", category, componentType, instance)
}
