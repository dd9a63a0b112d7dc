package exitcodes

// Exit codes for dupsweep
// These codes form the contract with scripts wrapping the CLI
const (
	Success          = 0 // Successful execution
	InvalidConfig    = 2 // Configuration file invalid or missing
	SafetyViolation  = 3 // Safety validator blocked an operation
	RuntimeError     = 4 // Runtime error during execution
	InconsistentPool = 5 // Pool document failed its sanity check
)
