package audit

// Redaction markers.
const (
	RedactedMarker  = "[REDACTED]"
	TruncatedMarker = "...[TRUNCATED]"
)

// FieldPolicy controls how one content field is stored.
// MaxContentLength <= 0 disables truncation.
type FieldPolicy struct {
	LogEnabled       bool `json:"log_enabled"`
	MaxContentLength int  `json:"max_content_length"`
}

// RedactionPolicy is applied independently to each content field.
type RedactionPolicy struct {
	Input    FieldPolicy `json:"input"`
	Output   FieldPolicy `json:"output"`
	ToolArgs FieldPolicy `json:"tool_args"`
}

// DefaultRedactionPolicy logs every field truncated to 2000 characters.
func DefaultRedactionPolicy() RedactionPolicy {
	p := FieldPolicy{LogEnabled: true, MaxContentLength: 2000}
	return RedactionPolicy{Input: p, Output: p, ToolArgs: p}
}

// UniformRedactionPolicy builds a policy sharing one length cap.
func UniformRedactionPolicy(maxContentLength int, logInput, logOutput, logToolArgs bool) RedactionPolicy {
	return RedactionPolicy{
		Input:    FieldPolicy{LogEnabled: logInput, MaxContentLength: maxContentLength},
		Output:   FieldPolicy{LogEnabled: logOutput, MaxContentLength: maxContentLength},
		ToolArgs: FieldPolicy{LogEnabled: logToolArgs, MaxContentLength: maxContentLength},
	}
}

// Apply redacts the content fields of r in place.
func (p RedactionPolicy) Apply(r *Record) {
	r.Input = p.Input.redact(r.Input)
	r.Output = p.Output.redact(r.Output)
	r.ToolArgs = p.ToolArgs.redact(r.ToolArgs)
}

// redact stores RedactedMarker for a disabled field whatever the content,
// empty included.
func (fp FieldPolicy) redact(content string) string {
	if !fp.LogEnabled {
		return RedactedMarker
	}
	if fp.MaxContentLength <= 0 {
		return content
	}
	runes := []rune(content)
	if len(runes) <= fp.MaxContentLength {
		return content
	}
	return string(runes[:fp.MaxContentLength]) + TruncatedMarker
}
