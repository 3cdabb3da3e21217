package llm

import (
	"regexp"
	"strings"

	"github.com/nikogura/doc-reformatter/pkg/section"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// logPreviewLength truncates raw model output in logs.
const logPreviewLength = 500

//nolint:gochecknoglobals // compiled once
var markdownHeaderPattern = regexp.MustCompile(`^\s*(?:\*\*([^*]+)\*\*\s*:?|#{1,6}\s+(.+?))\s*$`)

//nolint:gochecknoglobals // list markers recognised by the markdown fallback
var listMarkers = []string{"- ", "* ", "• "}

// Parser turns raw model output into a normalized section map: strict JSON first,
// then a repair pass, then the markdown fallback.
type Parser struct {
	repairer *Repairer
	logger   *zap.SugaredLogger
}

// NewParser creates a parser.
func NewParser(logger *zap.SugaredLogger) (p *Parser) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	p = &Parser{repairer: NewRepairer(), logger: logger}
	return p
}

// Parse returns a section map for raw, or a GatewayError carrying raw when every
// strategy fails.
func (p *Parser) Parse(raw string) (m *section.Map, err error) {
	cleaned := stripMarkdownCodeFences(raw)
	if cleaned == "" {
		err = &GatewayError{Message: "empty response from model", Raw: raw}
		return m, err
	}

	obj, strictErr := section.DecodeObject([]byte(cleaned))
	if strictErr == nil {
		m = p.Normalize(obj)
		return m, err
	}
	p.logger.Debugw("strict JSON parse failed", "error", strictErr, "raw", Preview(raw))

	if fixed, applied, ok := p.repairer.Repair(cleaned); ok {
		obj, repairErr := section.DecodeObject([]byte(fixed))
		if repairErr == nil {
			p.logger.Infow("repaired model JSON", "fixes", applied)
			m = p.Normalize(obj)
			return m, err
		}
		p.logger.Debugw("repaired JSON parse failed", "error", repairErr)
	}

	m, mdErr := ParseMarkdown(cleaned)
	if mdErr == nil {
		p.logger.Infow("parsed model output as markdown", "sections", m.Keys())
		return m, err
	}

	m = nil
	err = &GatewayError{
		Message: "invalid JSON from model",
		Raw:     raw,
		Cause:   strictErr,
	}
	return m, err
}

// Normalize hoists a wrapping "sections" object, collapses nested table rows and
// converts the result into a section map with lower-cased keys.
func (p *Parser) Normalize(obj *section.Object) (m *section.Map) {
	obj = unwrapSections(obj)

	for _, key := range obj.Keys {
		value := obj.Values[key]

		if strings.EqualFold(key, section.TablesKey) {
			if tables, ok := value.(*section.Object); ok {
				for _, name := range tables.Keys {
					rows, isList := tables.Values[name].([]interface{})
					if !isList {
						p.logger.Warnw("invalid table data", "table", name)
						tables.Set(name, []interface{}{})
						continue
					}
					collapsed, valid := section.CollapseRows(rows)
					if !valid {
						p.logger.Warnw("invalid table data", "table", name)
					}
					tables.Set(name, collapsed)
				}
			}
			continue
		}

		// Table-shaped values elsewhere get the same collapse.
		if rows, isList := value.([]interface{}); isList && len(rows) > 0 {
			if collapsed, valid := section.CollapseRows(rows); valid {
				obj.Set(key, collapsed)
			}
		}
	}

	m = section.FromObject(obj)
	return m
}

// unwrapSections promotes the members of a top-level "sections" object, keeping
// the other top-level keys after them.
func unwrapSections(obj *section.Object) (out *section.Object) {
	out = obj
	var wrapperKey string
	var inner *section.Object
	for _, k := range obj.Keys {
		if strings.EqualFold(k, "sections") {
			if o, ok := obj.Values[k].(*section.Object); ok {
				wrapperKey, inner = k, o
			}
		}
	}
	if inner == nil {
		return out
	}

	out = &section.Object{Values: make(map[string]interface{})}
	for _, k := range inner.Keys {
		out.Set(k, inner.Values[k])
	}
	for _, k := range obj.Keys {
		if k != wrapperKey {
			out.Set(k, obj.Values[k])
		}
	}
	return out
}

// ParseMarkdown builds a best-effort section map from markdown-ish text where
// "**Header**" or "## Header" lines open sections. A section made only of list
// lines becomes a list; anything else becomes text.
func ParseMarkdown(text string) (m *section.Map, err error) {
	m = section.NewMap()

	var key string
	var lines []string
	listOnly := true

	flush := func() {
		if key == "" || len(lines) == 0 {
			return
		}
		if listOnly {
			m.Set(key, section.List(lines...))
		} else {
			m.Set(key, section.Text(strings.Join(lines, "\n")))
		}
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		if match := markdownHeaderPattern.FindStringSubmatch(trimmed); match != nil {
			label := match[1]
			if label == "" {
				label = match[2]
			}
			if k := section.KeyFor(label); k != "" {
				flush()
				key, lines, listOnly = k, nil, true
				continue
			}
		}

		if key == "" {
			continue
		}

		item, isItem := listItem(trimmed)
		if isItem {
			lines = append(lines, item)
			continue
		}
		listOnly = false
		lines = append(lines, trimmed)
	}
	flush()

	if m.Len() == 0 {
		err = errors.New("no markdown sections found")
		return m, err
	}
	return m, err
}

func listItem(line string) (item string, ok bool) {
	for _, marker := range listMarkers {
		if strings.HasPrefix(line, marker) {
			item = strings.TrimSpace(strings.TrimPrefix(line, marker))
			ok = true
			return item, ok
		}
	}
	return item, ok
}

// Preview truncates s for logging.
func Preview(s string) (preview string) {
	preview = s
	if len(preview) > logPreviewLength {
		preview = preview[:logPreviewLength] + "..."
	}
	return preview
}
