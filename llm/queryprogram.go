package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// NoDataSentinel is the reserved program value meaning the question cannot
// be answered from the dataset schema. It short-circuits execution.
const NoDataSentinel = "NO_DATA_FOUND"

// NoDataMessage is the answer a user sees when a turn ends on the no-data
// sentinel. The wording is fixed; it never goes through the formatting model.
const NoDataMessage = "Required information is not available in the given database."

// noDataPhrase is what the generation prompt instructs the model to emit
// when the schema cannot answer the question.
const noDataPhrase = "required information is not available"

var codeBlockPattern = regexp.MustCompile("(?s)```([^\n`]*)\n(.*?)```")

// ParseError reports that a completion could not be parsed into an
// executable query program.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse query program: %s", e.Reason)
}

// QueryProgram is the executable form of a code-generation completion:
// one SQL query plus an optional JSON chart spec, or the no-data sentinel.
type QueryProgram struct {
	NoData bool
	SQL    string
	Chart  string
}

// ParseQueryProgram extracts a QueryProgram from free-form model output.
// The model is instructed to emit fenced code blocks; a bare SELECT
// statement without fences is accepted as a courtesy. Missing SQL or a
// malformed chart spec is a *ParseError.
func ParseQueryProgram(text string) (*QueryProgram, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, &ParseError{Reason: "empty completion"}
	}

	if trimmed == NoDataSentinel || strings.Contains(strings.ToLower(trimmed), noDataPhrase) {
		return &QueryProgram{NoData: true}, nil
	}

	prog := &QueryProgram{}

	for _, match := range codeBlockPattern.FindAllStringSubmatch(trimmed, -1) {
		lang := strings.ToLower(strings.TrimSpace(match[1]))
		body := strings.TrimSpace(match[2])
		switch lang {
		case "sql", "sqlite":
			if prog.SQL == "" {
				prog.SQL = body
			}
		case "chart":
			prog.Chart = body
		}
	}

	if prog.SQL == "" {
		// Some models skip the fences entirely for simple queries.
		upper := strings.ToUpper(trimmed)
		if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
			prog.SQL = trimmed
		}
	}

	if prog.SQL == "" {
		return nil, &ParseError{Reason: "no sql code block found"}
	}

	if prog.Chart != "" && !json.Valid([]byte(prog.Chart)) {
		return nil, &ParseError{Reason: "chart spec is not valid JSON"}
	}

	return prog, nil
}

// Blob serializes the program back to a canonical fenced-block form. The
// result round-trips through ParseQueryProgram, which is what conversation
// state stores between the generation and execution steps.
func (p *QueryProgram) Blob() string {
	if p.NoData {
		return NoDataSentinel
	}

	var sb strings.Builder
	sb.WriteString("```sql\n")
	sb.WriteString(p.SQL)
	sb.WriteString("\n```")
	if p.Chart != "" {
		sb.WriteString("\n```chart\n")
		sb.WriteString(p.Chart)
		sb.WriteString("\n```")
	}
	return sb.String()
}
