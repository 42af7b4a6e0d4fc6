package worker

// Version information for the worker module.
const (
	// Version is the current version of the worker module.
	Version = "0.1.0"

	// ProtocolVersion is the coordinator line protocol this worker speaks.
	ProtocolVersion = "1"
)
