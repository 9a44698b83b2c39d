package shell

import (
	"regexp"
	"strings"

	"github.com/jward/flowdiff/internal/symbol"
)

// Shell has no usable syntax tree here; extraction is line-oriented regex
// matching over a fixed set of command shapes.
var (
	urlPathPattern    = regexp.MustCompile(`https?://[^\s"']+(/[^\s"']*)`)
	varPathPattern    = regexp.MustCompile(`\$\{?[A-Z_]+\}?(/[^\s"']*)`)
	barePathPattern   = regexp.MustCompile(`(/[a-zA-Z0-9_/-]+)`)
	pythonModule      = regexp.MustCompile(`python[0-9.]* -m ([a-zA-Z0-9_.]+)`)
	pythonScript      = regexp.MustCompile(`python[0-9.]* ([a-zA-Z0-9_/.]+\.py)`)
	dotSlashScript    = regexp.MustCompile(`\./([a-zA-Z0-9_/.]+\.sh)`)
	interpreterScript = regexp.MustCompile(`\b(?:bash|sh|source) ([a-zA-Z0-9_/.]+\.sh)`)
)

// httpMethodFlags maps explicit curl method flags to HTTP verbs. A curl line
// without one defaults to GET.
var httpMethodFlags = []struct {
	needle string
	method string
}{
	{"-X POST", "POST"},
	{"--request POST", "POST"},
	{"-X PUT", "PUT"},
	{"--request PUT", "PUT"},
	{"-X DELETE", "DELETE"},
	{"--request DELETE", "DELETE"},
	{"-X PATCH", "PATCH"},
	{"--request PATCH", "PATCH"},
}

// extractCommands scans script content line by line and returns raw call
// tokens in source order. Comment lines are skipped entirely.
func extractCommands(content string) []string {
	var tokens []string
	for _, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if tok := curlToken(line); tok != "" {
			tokens = append(tokens, tok)
		}
		if tok := pythonToken(line); tok != "" {
			tokens = append(tokens, tok)
		}
		if tok := scriptToken(line); tok != "" {
			tokens = append(tokens, tok)
		}
	}
	return tokens
}

// curlToken returns an "HTTP:METHOD:/path" token for a curl invocation, or
// "" when the line has no curl call or no extractable path.
func curlToken(line string) string {
	if !strings.Contains(line, "curl") {
		return ""
	}

	method := "GET"
	for _, flag := range httpMethodFlags {
		if strings.Contains(line, flag.needle) {
			method = flag.method
			break
		}
	}

	path := ""
	for _, pattern := range []*regexp.Regexp{urlPathPattern, varPathPattern} {
		if m := pattern.FindStringSubmatch(line); m != nil {
			path = m[1]
			break
		}
	}
	if path == "" {
		if m := barePathPattern.FindStringSubmatch(line); m != nil {
			path = m[1]
		}
	}
	if path == "" {
		return ""
	}
	return symbol.TokenHTTP + method + ":" + path
}

// pythonToken returns a "PY:target" token for a direct interpreter
// invocation: `python -m a.b` yields the module name, `python x.py` the
// script path.
func pythonToken(line string) string {
	if !strings.Contains(line, "python") {
		return ""
	}
	if m := pythonModule.FindStringSubmatch(line); m != nil {
		return symbol.TokenPython + m[1]
	}
	if m := pythonScript.FindStringSubmatch(line); m != nil {
		return symbol.TokenPython + m[1]
	}
	return ""
}

// scriptToken returns an "SH:path" token for a script-to-script invocation
// via ./, bash, sh, or source.
func scriptToken(line string) string {
	if m := dotSlashScript.FindStringSubmatch(line); m != nil {
		return symbol.TokenScript + m[1]
	}
	if m := interpreterScript.FindStringSubmatch(line); m != nil {
		return symbol.TokenScript + m[1]
	}
	return ""
}
