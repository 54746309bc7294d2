package attachztest

// Metrics summarizes what a Host has seen.
// Counters are updated atomically; Listeners is read under the host mutex.
type Metrics struct {
	// Registration counters
	Registrations int64 // Accepted Once and On calls
	Rejected      int64 // Registrations refused by an injected failure, a limit or Close

	// Firing counters
	Invocations int64 // Callbacks run by Fire
	Failed      int64 // Callbacks that returned an error or panicked
	Expired     int64 // Failed callbacks whose context was done or timed out

	// Current state
	Listeners int64 // Listeners still registered
}
