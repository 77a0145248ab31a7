// Package extract pulls the configuration container and the named logic
// regions out of an unstructured source document, using only the blockscan
// line table. Nothing here judges extracted content for authenticity; that
// judgement applies to generated output, not to user input.
package extract

import (
	"strconv"
	"strings"

	"github.com/scanforge/scanforge/api/schemas"
	"github.com/scanforge/scanforge/internal/transform/blockscan"
	"go.uber.org/zap"
)

// Extractor locates parameters and logic regions in a source document.
type Extractor struct {
	logger *zap.Logger
}

// New creates an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger.Named("extract")}
}

// ExtractParameters locates a contiguous configuration container (a block of
// `name: literal` entries nested under one of the anchor names) and parses
// each literal into its kind, preserving declaration order.
//
// Failure to find the container is non-fatal: an empty ParameterSet is
// returned and the pipeline continues. Individual malformed entries are
// skipped, not fatal.
func (e *Extractor) ExtractParameters(doc *schemas.SourceDocument, table *blockscan.Table, anchors []string) *schemas.ParameterSet {
	params := schemas.NewParameterSet()

	openerIdx := table.FirstOpener(anchors)
	if openerIdx < 0 {
		e.logger.Debug("No configuration container found; continuing with an empty parameter set.")
		return params
	}

	bodyEnd := table.BodyEnd(openerIdx)
	for i := openerIdx + 1; i < bodyEnd; i++ {
		line := table.Lines[i]
		if line.IsBlank || line.IsCommentOnly {
			continue
		}
		def, ok := parseEntry(line)
		if !ok {
			e.logger.Debug("Skipping unparseable configuration entry.",
				zap.Int("line", line.Number), zap.String("raw", line.Raw))
			continue
		}
		if err := params.Add(def); err != nil {
			// Duplicate name; the first declaration wins.
			e.logger.Warn("Duplicate parameter name in configuration container.",
				zap.String("name", def.Name), zap.Int("line", line.Number))
		}
	}

	return params
}

// parseEntry parses one `name: literal` entry. Both plain and quoted keys are
// accepted, as is a trailing comma from dict-literal containers.
func parseEntry(line blockscan.Line) (schemas.ParameterDefinition, bool) {
	text := strings.TrimSpace(line.Raw)

	// Strip an inline comment, respecting a possible quoted value.
	if idx := inlineCommentIndex(text); idx >= 0 {
		text = strings.TrimSpace(text[:idx])
	}
	text = strings.TrimSuffix(text, ",")

	colon := strings.Index(text, ":")
	if colon <= 0 {
		return schemas.ParameterDefinition{}, false
	}

	name := strings.TrimSpace(text[:colon])
	name = strings.Trim(name, `"'`)
	if name == "" || strings.ContainsAny(name, " \t") {
		return schemas.ParameterDefinition{}, false
	}

	literal := strings.TrimSpace(text[colon+1:])
	if literal == "" {
		return schemas.ParameterDefinition{}, false
	}

	kind, normalized, ok := classifyLiteral(literal)
	if !ok {
		return schemas.ParameterDefinition{}, false
	}

	return schemas.ParameterDefinition{
		Name:         name,
		Kind:         kind,
		LiteralValue: normalized,
		SourceOffset: line.StartOffset,
	}, true
}

func inlineCommentIndex(text string) int {
	inQuote := byte(0)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case inQuote != 0:
			if c == inQuote {
				inQuote = 0
			}
		case c == '"' || c == '\'':
			inQuote = c
		case c == '#':
			return i
		}
	}
	return -1
}

// classifyLiteral determines the parameter kind. The literal is preserved as
// written except that quotes are stripped from strings.
func classifyLiteral(literal string) (schemas.ParameterKind, string, bool) {
	switch literal {
	case "true", "false", "True", "False":
		return schemas.KindBool, strings.ToLower(literal), true
	case "null", "None", "nil":
		return schemas.KindNull, "null", true
	}

	if _, err := strconv.ParseFloat(literal, 64); err == nil {
		return schemas.KindNumber, literal, true
	}

	if len(literal) >= 2 {
		first, last := literal[0], literal[len(literal)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return schemas.KindString, literal[1 : len(literal)-1], true
		}
	}

	// Bare single-word values read as strings; anything with structure
	// (lists, nested dicts) is out of the container grammar.
	if !strings.ContainsAny(literal, "{}[]()") && !strings.ContainsAny(literal, " \t") {
		return schemas.KindString, literal, true
	}
	return "", "", false
}
