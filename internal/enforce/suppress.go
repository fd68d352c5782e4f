package enforce

import (
	"fmt"
	"strings"

	"github.com/dusk-indust/girder/internal/config"
	"github.com/dusk-indust/girder/internal/graph"
)

// inlineDirective is the docstring marker that silences a check for one
// function, e.g. "girder:suppress E003 generated accessor".
const inlineDirective = "girder:suppress"

// Suppressor resolves the three suppression sources: inline docstring
// directives, persistent configured rules, and one-shot invocation
// overrides. All three carry equal weight.
type Suppressor struct {
	rules   []config.SuppressionRule
	oneShot map[string]string
}

func NewSuppressor(rules []config.SuppressionRule) *Suppressor {
	return &Suppressor{rules: rules, oneShot: make(map[string]string)}
}

// AddOneShot silences a code for the next evaluation only.
func (s *Suppressor) AddOneShot(code, reason string) {
	if reason == "" {
		reason = "suppressed for this invocation"
	}
	s.oneShot[code] = reason
}

// ClearOneShot drops invocation overrides after an evaluation.
func (s *Suppressor) ClearOneShot() {
	s.oneShot = make(map[string]string)
}

// Apply checks a violation against every source. When a source matches
// the violation is rewritten in place as an S001 informational record
// that keeps the original code and category visible. Suppressed
// findings are reported, never dropped.
func (s *Suppressor) Apply(v *Violation, node *graph.GraphNode) bool {
	reason, ok := s.match(v, node)
	if !ok {
		return false
	}
	v.Message = fmt.Sprintf("%s (%s) suppressed: %s", v.Code, v.Category, v.Message)
	v.OriginalCode = v.Code
	v.Code = CodeSuppressed
	v.Severity = SeverityInfo
	v.Suppressed = true
	v.SuppressReason = reason
	v.FixHint = ""
	return true
}

func (s *Suppressor) match(v *Violation, node *graph.GraphNode) (string, bool) {
	if reason, ok := s.oneShot[v.Code]; ok {
		return reason, true
	}
	if node != nil && inlineSuppresses(node.Docstring, v.Code) {
		return "inline directive", true
	}
	for _, r := range s.rules {
		if r.Code != v.Code {
			continue
		}
		if r.Path != "" && !pathMatches(r.Path, v.File) {
			continue
		}
		if r.Symbol != "" && node != nil && r.Symbol != node.Name {
			continue
		}
		if r.Symbol != "" && node == nil {
			continue
		}
		return r.Reason, true
	}
	return "", false
}

func inlineSuppresses(docstring, code string) bool {
	rest := docstring
	for {
		i := strings.Index(rest, inlineDirective)
		if i < 0 {
			return false
		}
		rest = rest[i+len(inlineDirective):]
		fields := strings.Fields(rest)
		if len(fields) > 0 && strings.EqualFold(fields[0], code) {
			return true
		}
	}
}

func pathMatches(prefix, file string) bool {
	if file == prefix {
		return true
	}
	prefix = strings.TrimSuffix(prefix, "/")
	return strings.HasPrefix(file, prefix+"/")
}
