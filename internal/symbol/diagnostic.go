package symbol

import "fmt"

// DiagnosticKind classifies a recoverable problem recorded during a run.
type DiagnosticKind string

const (
	// DiagParseError marks a file that could not be read or parsed. The file
	// is skipped; the run continues.
	DiagParseError DiagnosticKind = "parse_error"

	// DiagUnresolvedCall marks a call token that matched no symbol and no
	// bridge. Informational: the call is simply absent from ResolvedCalls.
	DiagUnresolvedCall DiagnosticKind = "unresolved_call"

	// DiagOverrideFailure marks a failed or timed-out entry-point override;
	// the rule-based classification stands.
	DiagOverrideFailure DiagnosticKind = "override_failure"

	// DiagBridgeFailure marks a bridge whose Resolve returned an error; the
	// bridge's references are skipped.
	DiagBridgeFailure DiagnosticKind = "bridge_failure"
)

// Diagnostic is one recoverable problem: a skipped file, an unresolved call,
// or a degraded optional collaborator. Diagnostics never abort a run.
type Diagnostic struct {
	Kind    DiagnosticKind `json:"kind"`
	Path    string         `json:"path,omitempty"`    // file involved, if any
	Detail  string         `json:"detail"`
	Subject string         `json:"subject,omitempty"` // qualified name or call token involved, if any
}

func (d Diagnostic) String() string {
	if d.Path != "" {
		return fmt.Sprintf("%s: %s: %s", d.Kind, d.Path, d.Detail)
	}
	return fmt.Sprintf("%s: %s", d.Kind, d.Detail)
}
