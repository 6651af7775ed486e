package connection

// Source names where the active config came from.
type Source string

const (
	SourceNone   Source = "none"
	SourceEnv    Source = "env"
	SourceCustom Source = "custom"
)

// Resolved is the outcome of a resolution pass: the active config (nil when
// nothing usable exists) and its source. Derived on demand, never stored.
type Resolved struct {
	Config *Config
	Source Source
}

// Identity returns the active config's identity, or "" when unresolved.
func (r Resolved) Identity() string {
	if r.Config == nil {
		return ""
	}
	return r.Config.Identity()
}
