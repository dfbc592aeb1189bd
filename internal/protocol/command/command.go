// Package command defines registrable CSTA commands and the registry that
// maps inbound element names back to the command that expects them.
package command

import "strings"

// XMLDeclaration prefixes every rendered command body.
const XMLDeclaration = `<?xml version="1.0" encoding="utf-8"?>`

// Params carries caller-supplied values for one render.
type Params map[string]string

// Get returns the value for key or "" when absent.
func (p Params) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Clone returns an independent copy of p.
func (p Params) Clone() Params {
	out := make(Params, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Command renders one outbound request and declares the inbound element
// names it answers for. Implementations hold no per-call state.
type Command interface {
	Name() string
	Events() []string
	Render(params Params) (string, error)
}

// Func adapts a render closure into a Command.
type Func struct {
	CommandName string
	EventNames  []string
	Body        func(Params) (string, error)
}

func (f Func) Name() string     { return f.CommandName }
func (f Func) Events() []string { return f.EventNames }

func (f Func) Render(params Params) (string, error) {
	if f.Body == nil {
		return "", nil
	}
	return f.Body(params)
}

// Expects reports whether cmd declares eventName.
func Expects(cmd Command, eventName string) bool {
	for _, name := range cmd.Events() {
		if name == eventName {
			return true
		}
	}
	return false
}

var (
	xmlEscaper = strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"'", "&#x27;",
		`"`, "&quot;",
	)
	xmlUnescaper = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&#x27;", "'",
		"&quot;", `"`,
	)
)

// EscapeXML replaces the five critical XML entities.
func EscapeXML(s string) string {
	return xmlEscaper.Replace(s)
}

func UnescapeXML(s string) string {
	return xmlUnescaper.Replace(s)
}
