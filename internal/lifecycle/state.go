package lifecycle

// State is a stage in the life of the service process.
type State int

const (
	StateStarting State = iota
	StateListening
	StateSelfCheckPassed
	StateSelfCheckFailed
	StateRunning
	StateDraining
	StateStopped
)

var stateNames = [...]string{
	StateStarting:        "Starting",
	StateListening:       "Listening",
	StateSelfCheckPassed: "SelfCheckPassed",
	StateSelfCheckFailed: "SelfCheckFailed",
	StateRunning:         "Running",
	StateDraining:        "Draining",
	StateStopped:         "Stopped",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return "Unknown"
}

// ShuttingDown reports whether the service has stopped accepting new work in
// state s.
func (s State) ShuttingDown() bool {
	return s == StateSelfCheckFailed || s == StateDraining || s == StateStopped
}
