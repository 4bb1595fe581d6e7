package settings

// ConfigurableModule is implemented by any component whose live
// configuration the manager can hot-swap. OnSettingsUpdate is invoked
// after each successful Update call; the initial load does not notify.
type ConfigurableModule interface {
	OnSettingsUpdate(newSettings *EngineSettings) error
}

// EngineSettings is the on-disk/runtime-mutable shape of settings.json:
// the configuration surface spec.md §6 describes, all fields mutable
// at runtime via SettingsManager.Update.
type EngineSettings struct {
	BufferSize                int      `json:"buffer_size"`
	IdleTimeoutSeconds        int      `json:"idle_timeout_seconds"`
	MaxConnectionsPerProxy    int      `json:"max_connections_per_proxy"`
	LoggingEnabled            bool     `json:"logging_enabled"`
	BypassCollaboratorEnabled bool     `json:"bypass_collaborator_enabled"`
	BypassDomains             []string `json:"bypass_domains"`
	SelectionMode             string   `json:"selection_mode"` // "random" | "round_robin"
}

// DefaultSettings mirrors spec.md §6's stated defaults.
func DefaultSettings() *EngineSettings {
	return &EngineSettings{
		BufferSize:                8192,
		IdleTimeoutSeconds:        60,
		MaxConnectionsPerProxy:    50,
		LoggingEnabled:            true,
		BypassCollaboratorEnabled: true,
		BypassDomains:             []string{"burpcollaborator.net", "oastify.com"},
		SelectionMode:             "random",
	}
}

func (s *EngineSettings) clone() *EngineSettings {
	c := *s
	c.BypassDomains = append([]string(nil), s.BypassDomains...)
	return &c
}
