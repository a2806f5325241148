package safety

import "strings"

// Label is the scanner's categorical judgment
type Label string

const (
	VerdictClean      Label = "CLEAN"
	VerdictBenign     Label = "BENIGN"
	VerdictSuspicious Label = "SUSPICIOUS"
	VerdictMalicious  Label = "MALICIOUS"

	// VerdictUnknown is produced locally when the scanner could not be used.
	// The remote service never returns it.
	VerdictUnknown Label = "UNKNOWN"
)

// ParseLabel matches a remote verdict case-insensitively. UNKNOWN and
// unrecognized strings report ok=false.
func ParseLabel(s string) (Label, bool) {
	switch l := Label(strings.ToUpper(strings.TrimSpace(s))); l {
	case VerdictClean, VerdictBenign, VerdictSuspicious, VerdictMalicious:
		return l, true
	default:
		return VerdictUnknown, false
	}
}

// Finding is one issue reported by the scanner
type Finding struct {
	ID          string `json:"id,omitempty"`
	Severity    string `json:"severity,omitempty"`
	Description string `json:"description,omitempty"`
}

// Verdict is the result of one screen
type Verdict struct {
	Verdict   Label     `json:"verdict"`
	RiskScore int       `json:"riskScore"`
	Findings  []Finding `json:"findings"`

	// Warning is set when the screen failed open
	Warning string `json:"warning,omitempty"`

	// Cost is what the scan itself cost, when it was paid
	Cost string `json:"cost,omitempty"`
}

// Unknown builds the fail-open verdict
func Unknown(warning string) Verdict {
	return Verdict{Verdict: VerdictUnknown, RiskScore: 0, Findings: []Finding{}, Warning: warning}
}

// Blocks reports whether the verdict forbids contacting the target
func (v Verdict) Blocks() bool {
	return v.Verdict == VerdictMalicious
}
