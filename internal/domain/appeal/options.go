package appeal

// Option configures a Machine.
type Option func(*Machine)

// WithStrict makes a transition out of a terminal state panic instead of
// returning ErrTerminalState. Intended for development builds.
func WithStrict(strict bool) Option {
	return func(m *Machine) {
		m.strict = strict
	}
}
