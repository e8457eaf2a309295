package output

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/ocs-tools/ocsdeck/internal/tui/theme"
)

// CLIError represents a structured CLI error with remediation hints.
type CLIError struct {
	Message string // What failed
	Cause   string // Why it failed (optional)
	Hint    string // Fastest command/action to fix it (optional)
	Code    string // Error code for programmatic handling (optional)
}

// Error implements the error interface.
func (e *CLIError) Error() string {
	return e.Message
}

// NewCLIError creates a new CLI error with just a message.
func NewCLIError(msg string) *CLIError {
	return &CLIError{Message: msg}
}

// WithCause adds a cause to the error.
func (e *CLIError) WithCause(cause string) *CLIError {
	e.Cause = cause
	return e
}

// WithHint adds a remediation hint to the error.
func (e *CLIError) WithHint(hint string) *CLIError {
	e.Hint = hint
	return e
}

// WithCode adds an error code to the error.
func (e *CLIError) WithCode(code string) *CLIError {
	e.Code = code
	return e
}

// isStderrTerminal checks if stderr is a terminal (for color output).
func isStderrTerminal() bool {
	return term.IsTerminal(int(os.Stderr.Fd()))
}

// FormatCLIError formats a CLIError for terminal output with colors.
// Returns plain text if stderr is not a terminal or NO_COLOR is set.
func FormatCLIError(e *CLIError) string {
	useColor := isStderrTerminal() && os.Getenv("NO_COLOR") == ""

	var sb strings.Builder

	if useColor {
		t := theme.Current()
		errorStyle := lipgloss.NewStyle().Foreground(t.Error).Bold(true)
		causeStyle := lipgloss.NewStyle().Foreground(t.Subtext)
		hintStyle := lipgloss.NewStyle().Foreground(t.Info)
		codeStyle := lipgloss.NewStyle().Foreground(t.Overlay)

		sb.WriteString(errorStyle.Render("Error: "))
		sb.WriteString(e.Message)

		if e.Code != "" {
			sb.WriteString(" ")
			sb.WriteString(codeStyle.Render("[" + e.Code + "]"))
		}
		sb.WriteString("\n")

		if e.Cause != "" {
			sb.WriteString(causeStyle.Render("  Cause: "))
			sb.WriteString(e.Cause)
			sb.WriteString("\n")
		}

		if e.Hint != "" {
			sb.WriteString(hintStyle.Render("  Hint: "))
			sb.WriteString(e.Hint)
			sb.WriteString("\n")
		}
	} else {
		sb.WriteString("Error: ")
		sb.WriteString(e.Message)
		if e.Code != "" {
			sb.WriteString(" [")
			sb.WriteString(e.Code)
			sb.WriteString("]")
		}
		sb.WriteString("\n")

		if e.Cause != "" {
			sb.WriteString("  Cause: ")
			sb.WriteString(e.Cause)
			sb.WriteString("\n")
		}

		if e.Hint != "" {
			sb.WriteString("  Hint: ")
			sb.WriteString(e.Hint)
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// PrintCLIError prints a CLIError to stderr with formatting.
func PrintCLIError(e *CLIError) {
	fmt.Fprint(os.Stderr, FormatCLIError(e))
}

// PrintCLIErrorOrJSON prints a CLIError to stderr (text) or stdout (JSON).
func PrintCLIErrorOrJSON(e *CLIError, jsonMode bool) error {
	if jsonMode {
		resp := ErrorResponse{
			Error:   e.Message,
			Code:    e.Code,
			Details: e.Cause,
			Hint:    e.Hint,
		}
		return WriteJSON(os.Stdout, resp, true)
	}
	PrintCLIError(e)
	return e
}

// PrintError writes an error to stderr and returns an error for JSON mode
func PrintError(err error, jsonMode bool) error {
	if jsonMode {
		return WriteJSON(os.Stdout, NewError(err.Error()), true)
	}
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	return err
}

// Common error hints for frequent scenarios
var (
	// Connection errors
	HintRouterUnreachable = "Check that the crossbar router is running and crossbar.url in the config is correct"
	HintAgentOffline      = "Check the agent's host; 'ocsdeck status' shows which agents are registered"

	// Config errors
	HintConfigNotFound = "Create ~/.config/ocsdeck/config.toml or pass --config with an explicit path"
	HintConfigInvalid  = "Check the TOML syntax and panel definitions in the config file"

	// Dispatch errors
	HintAccessDenied = "Raise access.level in the config, or ask the site operator for operator access"
	HintOpBlocked    = "Stop the blocking process first; 'ocsdeck status <agent>' shows what is running"
)

// PanelNotFoundError creates a panel lookup error with hint.
func PanelNotFoundError(agent string) *CLIError {
	return NewCLIError(fmt.Sprintf("no panel configured for agent '%s'", agent)).
		WithCode("PANEL_NOT_FOUND").
		WithHint("Run 'ocsdeck status' without arguments to list configured panels")
}

// RouterUnreachableError creates a connection error with hint.
func RouterUnreachableError(url string, cause error) *CLIError {
	e := NewCLIError(fmt.Sprintf("cannot reach crossbar router at %s", url)).
		WithCode("ROUTER_UNREACHABLE").
		WithHint(HintRouterUnreachable)
	if cause != nil {
		e = e.WithCause(cause.Error())
	}
	return e
}

// AgentOfflineError flags a dispatch against an agent the router
// does not currently see.
func AgentOfflineError(agent string) *CLIError {
	return NewCLIError(fmt.Sprintf("agent '%s' is not connected to the router", agent)).
		WithCode("AGENT_OFFLINE").
		WithHint(HintAgentOffline)
}

// ConfigError wraps a config load failure, distinguishing a missing
// file from an invalid one.
func ConfigError(path string, cause error) *CLIError {
	if errors.Is(cause, fs.ErrNotExist) {
		return NewCLIError(fmt.Sprintf("no config file at %s", path)).
			WithCode("CONFIG_NOT_FOUND").
			WithHint(HintConfigNotFound)
	}
	return NewCLIError(fmt.Sprintf("config file %s is invalid", path)).
		WithCause(cause.Error()).
		WithCode("CONFIG_INVALID").
		WithHint(HintConfigInvalid)
}
