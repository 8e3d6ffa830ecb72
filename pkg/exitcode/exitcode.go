// Package exitcode provides standardized exit codes for latch
package exitcode

// Exit codes for the latch CLI
const (
	Success      = 0
	GeneralError = 1
	ConfigError  = 2
	CheckFailure = 3
	BlockedGraph = 4
	ToolNotFound = 9
)

// String returns a human-readable description of the exit code
func String(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case ConfigError:
		return "Configuration error"
	case CheckFailure:
		return "One or more blocking checks failed"
	case BlockedGraph:
		return "Stages blocked by a failed dependency"
	case ToolNotFound:
		return "Required tool not found"
	default:
		return "Unknown error"
	}
}
