package config

// Passthrough holds arbitrary config keys forwarded verbatim to a library's
// own config struct T. Bind it with koanf's ",remain" tag; the type parameter
// exists so documentation tooling can discover the target type via reflect.
type Passthrough[T any] map[string]any
