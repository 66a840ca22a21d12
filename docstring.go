package funcall

import (
	"strings"
)

// DocParam is one documented parameter.
type DocParam struct {
	Name        string
	Description string
	TypeName    string // declared type, fallback only when the signature has none
	Optional    bool
	Default     string // literal from "Defaults to X." or "(default: X)"
	HasDefault  bool
}

// DocReturn documents the return value.
type DocReturn struct {
	Description string
	TypeName    string
}

// Docstring is the structured form of a callable's documentation.
type Docstring struct {
	Short   string
	Long    string
	Params  []DocParam
	Returns *DocReturn
}

// Param returns the documented parameter with the given name.
func (d *Docstring) Param(name string) (DocParam, bool) {
	if d == nil {
		return DocParam{}, false
	}
	for _, p := range d.Params {
		if p.Name == name {
			return p, true
		}
	}
	return DocParam{}, false
}

// ParseDocstring parses documentation text into its structured form. Google
// style ("Args:" / "Returns:" blocks) and reST fields (":param x:", ":type
// x:", ":returns:", ":rtype:") are supported. Parsing never fails: anything
// unrecognized is folded into the description, and empty input yields an
// empty record.
func ParseDocstring(text string) *Docstring {
	doc := &Docstring{}
	lines := strings.Split(text, "\n")

	const (
		statePreamble = iota
		stateArgs
		stateReturns
		stateSkip
	)
	state := statePreamble
	var preamble []string
	var lastParam *DocParam
	var lastIsReturn bool

	flushTo := func(desc string) {
		if lastIsReturn && doc.Returns != nil {
			doc.Returns.Description = joinDesc(doc.Returns.Description, desc)
		} else if lastParam != nil {
			lastParam.Description = joinDesc(lastParam.Description, desc)
		}
	}

	for _, raw := range lines {
		line := strings.TrimSpace(raw)

		switch line {
		case "Args:", "Arguments:", "Parameters:":
			state = stateArgs
			lastParam, lastIsReturn = nil, false
			continue
		case "Raises:", "Examples:", "Example:", "Yields:", "Note:", "Notes:":
			state = stateSkip
			lastParam, lastIsReturn = nil, false
			continue
		}
		if rest, ok := strings.CutPrefix(line, "Returns:"); ok {
			state = stateReturns
			lastParam, lastIsReturn = nil, true
			doc.Returns = parseReturnLine(strings.TrimSpace(rest), doc.Returns)
			continue
		}

		// reST fields are recognized in any state.
		if strings.HasPrefix(line, ":") {
			if parseRestField(doc, line, &lastParam, &lastIsReturn) {
				state = stateSkip // continuations handled via lastParam/lastIsReturn
				continue
			}
		}

		switch state {
		case statePreamble:
			preamble = append(preamble, line)
		case stateArgs:
			if line == "" {
				lastParam = nil
				continue
			}
			if p, ok := parseParamLine(line); ok {
				doc.Params = append(doc.Params, p)
				lastParam = &doc.Params[len(doc.Params)-1]
			} else {
				flushTo(line)
			}
		case stateReturns:
			if line == "" {
				continue
			}
			doc.Returns = parseReturnLine(line, doc.Returns)
		case stateSkip:
			if line != "" && (lastParam != nil || lastIsReturn) {
				flushTo(line)
			}
		}
	}

	doc.Short, doc.Long = splitDescription(preamble)
	for i := range doc.Params {
		extractDefault(&doc.Params[i])
	}
	return doc
}

// parseParamLine parses "name (type, optional): desc" or "name: desc".
func parseParamLine(line string) (DocParam, bool) {
	colon := strings.Index(line, ":")
	if colon <= 0 {
		return DocParam{}, false
	}
	head := strings.TrimSpace(line[:colon])
	desc := strings.TrimSpace(line[colon+1:])

	var p DocParam
	if open := strings.Index(head, "("); open > 0 && strings.HasSuffix(head, ")") {
		p.Name = strings.TrimSpace(head[:open])
		p.TypeName, p.Optional = splitOptionalMarker(head[open+1 : len(head)-1])
	} else {
		p.Name = head
	}
	if p.Name == "" || strings.ContainsAny(p.Name, " \t") {
		return DocParam{}, false
	}
	p.Description = desc
	return p, true
}

// parseReturnLine folds one Returns-section line into ret. A leading
// single-word "type:" prefix is treated as the declared return type.
func parseReturnLine(line string, ret *DocReturn) *DocReturn {
	if ret == nil {
		ret = &DocReturn{}
	}
	if line == "" {
		return ret
	}
	if colon := strings.Index(line, ":"); colon > 0 && ret.TypeName == "" && ret.Description == "" {
		head := strings.TrimSpace(line[:colon])
		if !strings.ContainsAny(head, " \t") {
			ret.TypeName = head
			ret.Description = strings.TrimSpace(line[colon+1:])
			return ret
		}
	}
	ret.Description = joinDesc(ret.Description, line)
	return ret
}

// parseRestField handles one ":field ...:" line. Returns false when the line
// is not a recognized reST field.
func parseRestField(doc *Docstring, line string, lastParam **DocParam, lastIsReturn *bool) bool {
	body := line[1:]
	colon := strings.Index(body, ":")
	if colon < 0 {
		return false
	}
	field := strings.TrimSpace(body[:colon])
	value := strings.TrimSpace(body[colon+1:])

	switch {
	case strings.HasPrefix(field, "param "):
		name := strings.TrimSpace(strings.TrimPrefix(field, "param "))
		// ":param int arg1: desc" carries an inline type.
		var typeName string
		if parts := strings.Fields(name); len(parts) == 2 {
			typeName, name = parts[0], parts[1]
		}
		doc.Params = append(doc.Params, DocParam{Name: name, TypeName: typeName, Description: value})
		*lastParam = &doc.Params[len(doc.Params)-1]
		*lastIsReturn = false
		return true
	case strings.HasPrefix(field, "type "):
		name := strings.TrimSpace(strings.TrimPrefix(field, "type "))
		for i := range doc.Params {
			if doc.Params[i].Name == name {
				doc.Params[i].TypeName, doc.Params[i].Optional = splitOptionalMarker(value)
				break
			}
		}
		*lastParam, *lastIsReturn = nil, false
		return true
	case field == "return" || field == "returns":
		if doc.Returns == nil {
			doc.Returns = &DocReturn{}
		}
		doc.Returns.Description = joinDesc(doc.Returns.Description, value)
		*lastParam, *lastIsReturn = nil, true
		return true
	case field == "rtype":
		if doc.Returns == nil {
			doc.Returns = &DocReturn{}
		}
		doc.Returns.TypeName = value
		*lastParam, *lastIsReturn = nil, false
		return true
	}
	return false
}

// splitOptionalMarker strips a trailing ", optional" from a declared type.
func splitOptionalMarker(typeName string) (string, bool) {
	typeName = strings.TrimSpace(typeName)
	if rest, ok := strings.CutSuffix(typeName, ", optional"); ok {
		return strings.TrimSpace(rest), true
	}
	if strings.EqualFold(typeName, "optional") {
		return "", true
	}
	return typeName, false
}

// extractDefault scans a parameter description for a documented default
// literal: "(default: X)" or "Defaults to X.".
func extractDefault(p *DocParam) {
	desc := p.Description
	lower := strings.ToLower(desc)

	if i := strings.Index(lower, "(default:"); i >= 0 {
		rest := desc[i+len("(default:"):]
		if end := strings.IndexByte(rest, ')'); end >= 0 {
			p.Default = strings.TrimSpace(rest[:end])
			p.HasDefault = true
			p.Optional = true
			return
		}
	}
	if i := strings.Index(lower, "defaults to "); i >= 0 {
		rest := desc[i+len("defaults to "):]
		if end := strings.IndexByte(rest, '.'); end >= 0 {
			rest = rest[:end]
		}
		rest = strings.TrimSpace(rest)
		if rest != "" {
			p.Default = rest
			p.HasDefault = true
			p.Optional = true
		}
	}
}

func joinDesc(existing, more string) string {
	if existing == "" {
		return more
	}
	if more == "" {
		return existing
	}
	return existing + " " + more
}

// splitDescription separates the leading paragraph (short description) from
// the rest (long description).
func splitDescription(lines []string) (short, long string) {
	// Trim leading and trailing blank lines.
	for len(lines) > 0 && lines[0] == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) == 0 {
		return "", ""
	}
	var paragraphs []string
	var current []string
	for _, line := range lines {
		if line == "" {
			if len(current) > 0 {
				paragraphs = append(paragraphs, strings.Join(current, " "))
				current = nil
			}
			continue
		}
		current = append(current, line)
	}
	if len(current) > 0 {
		paragraphs = append(paragraphs, strings.Join(current, " "))
	}
	short = paragraphs[0]
	if len(paragraphs) > 1 {
		long = strings.Join(paragraphs[1:], "\n")
	}
	return short, long
}
