package core

// AdapterConfig holds configuration for a silver source adapter.
type AdapterConfig struct {
	Type     string            `json:"type" koanf:"type"`
	Path     string            `json:"path,omitempty" koanf:"path"`
	DSN      string            `json:"dsn,omitempty" koanf:"dsn"`
	Host     string            `json:"host,omitempty" koanf:"host"`
	Port     int               `json:"port,omitempty" koanf:"port"`
	Database string            `json:"database,omitempty" koanf:"database"`
	Username string            `json:"username,omitempty" koanf:"username"`
	Password string            `json:"password,omitempty" koanf:"password"`
	Schema   string            `json:"schema,omitempty" koanf:"schema"`
	Options  map[string]string `json:"options,omitempty" koanf:"options"`
}
