package plugin

// State represents the lifecycle state of a plugin name within a manager.
type State int

// Plugin states.
const (
	// StateUnregistered - no descriptor is known for the name.
	StateUnregistered State = iota

	// StateRegistered - discovered but never loaded.
	StateRegistered

	// StateLoaded - constructed and configured, Initialize not yet complete.
	StateLoaded

	// StateInitialized - stored and receiving hooks.
	StateInitialized

	// StateUnloaded - cleaned up and removed; may be loaded again.
	StateUnloaded
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateUnregistered:
		return "unregistered"
	case StateRegistered:
		return "registered"
	case StateLoaded:
		return "loaded"
	case StateInitialized:
		return "initialized"
	case StateUnloaded:
		return "unloaded"
	default:
		return "unknown"
	}
}

// IsActive returns true if the plugin receives hook calls.
func (s State) IsActive() bool {
	return s == StateInitialized
}
