package rules

import (
	"fmt"
	"strings"
)

// Severity grades how serious a finding is if true.
type Severity uint8

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = [...]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if int(s) < len(severityNames) {
		return severityNames[s]
	}
	return fmt.Sprintf("severity(%d)", uint8(s))
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	if int(s) >= len(severityNames) {
		return nil, fmt.Errorf("marshaling severity: unknown value %d", uint8(s))
	}
	return []byte(severityNames[s]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	name := string(text)
	for i, n := range severityNames {
		if n == name {
			*s = Severity(i)
			return nil
		}
	}
	return fmt.Errorf("unmarshaling severity: unknown name %q", name)
}

// Confidence grades how sure the rule is that the finding is true.
type Confidence uint8

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

var confidenceNames = [...]string{
	ConfidenceLow:    "low",
	ConfidenceMedium: "medium",
	ConfidenceHigh:   "high",
}

func (c Confidence) String() string {
	if int(c) < len(confidenceNames) {
		return confidenceNames[c]
	}
	return fmt.Sprintf("confidence(%d)", uint8(c))
}

// MarshalText implements encoding.TextMarshaler.
func (c Confidence) MarshalText() ([]byte, error) {
	if int(c) >= len(confidenceNames) {
		return nil, fmt.Errorf("marshaling confidence: unknown value %d", uint8(c))
	}
	return []byte(confidenceNames[c]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(text []byte) error {
	name := string(text)
	for i, n := range confidenceNames {
		if n == name {
			*c = Confidence(i)
			return nil
		}
	}
	return fmt.Errorf("unmarshaling confidence: unknown name %q", name)
}

// Finding represents one rule violation on one method. A rule emits at most
// one finding per method per pass.
type Finding struct {
	Rule       string     `json:"rule"`
	Module     string     `json:"module,omitempty"`
	Method     string     `json:"method"`
	Severity   Severity   `json:"severity"`
	Confidence Confidence `json:"confidence"`
}

// String renders the finding in the single-line text report form.
func (f *Finding) String() string {
	var builder strings.Builder
	builder.Grow(96)
	builder.WriteString(f.Method)
	builder.WriteString(": ")
	builder.WriteString(f.Rule)
	builder.WriteString(" [")
	builder.WriteString(f.Severity.String())
	builder.WriteByte('/')
	builder.WriteString(f.Confidence.String())
	builder.WriteByte(']')
	return builder.String()
}
