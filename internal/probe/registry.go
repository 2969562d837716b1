package probe

// Registry maps a service's check-type discriminator to a Checker. Only
// "http" is registered today; the discriminator is an extension seam for
// future probe protocols, so unknown types fall back to the HTTP checker
// instead of failing.
type Registry struct {
	fallback Checker
	byType   map[string]Checker
}

func NewRegistry(fallback Checker) *Registry {
	return &Registry{
		fallback: fallback,
		byType:   map[string]Checker{"http": fallback},
	}
}

// Register adds a checker for a check type, replacing any existing one.
func (r *Registry) Register(checkType string, c Checker) {
	r.byType[checkType] = c
}

// ForType returns the checker for the given check type.
func (r *Registry) ForType(checkType string) Checker {
	if c, ok := r.byType[checkType]; ok {
		return c
	}
	return r.fallback
}
