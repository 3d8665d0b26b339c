// Package executor runs generated query programs against a platform's
// dataset connection. Execution failures never escape as errors; they are
// classified into text that drives the workflow's reflection loop.
package executor

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"tablechat/llm"
)

// maxCapturedRows bounds how much of a result set is captured into
// conversation state. Anything beyond it is cut off, not an error.
const maxCapturedRows = 500

// Table is a captured query result: ordered columns plus row tuples.
type Table struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	Truncated bool     `json:"truncated,omitempty"`
}

// Render returns a JSON rendering of the table suitable for inclusion in a
// formatting prompt.
func (t *Table) Render() string {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Sprintf("columns: %v (%d rows)", t.Columns, len(t.Rows))
	}
	return string(data)
}

// Outcome is the result of running one query program. Exactly one of Result
// or ErrText is meaningful; Fig is set only when the program carried a chart
// spec and the query succeeded.
type Outcome struct {
	Result  *Table
	Fig     string
	ErrText string
	NoData  bool
}

// Executor executes query programs against a single dataset connection with
// a hard wall-clock timeout per query.
type Executor struct {
	db      *sql.DB
	timeout time.Duration
	logger  hclog.Logger
}

// New creates an executor bound to the given dataset connection.
func New(db *sql.DB, timeout time.Duration, logger hclog.Logger) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Executor{db: db, timeout: timeout, logger: logger.Named("executor")}
}

// Execute runs the program and classifies every failure into Outcome.ErrText.
// The no-data sentinel bypasses execution entirely.
func (e *Executor) Execute(ctx context.Context, prog *llm.QueryProgram) Outcome {
	if prog.NoData {
		return Outcome{NoData: true, ErrText: llm.NoDataSentinel}
	}

	if errText := validateReadOnly(prog.SQL); errText != "" {
		return Outcome{ErrText: errText}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	table, errText := e.runQuery(ctx, prog.SQL)
	if errText != "" {
		e.logger.Debug("query failed", "error", errText)
		return Outcome{ErrText: errText}
	}

	return Outcome{Result: table, Fig: prog.Chart}
}

func (e *Executor) runQuery(ctx context.Context, query string) (*Table, string) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err.Error()
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err.Error()
	}
	if len(cols) == 0 {
		return nil, "query produced no result set"
	}

	table := &Table{Columns: cols}

	for rows.Next() {
		if len(table.Rows) >= maxCapturedRows {
			table.Truncated = true
			break
		}

		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err.Error()
		}

		for i, v := range values {
			if b, ok := v.([]byte); ok {
				values[i] = string(b)
			}
		}
		table.Rows = append(table.Rows, values)
	}

	if err := rows.Err(); err != nil {
		return nil, err.Error()
	}

	return table, ""
}

// validateReadOnly rejects programs that are not a single read query. The
// dataset connection is opened read-only as well; this just produces a
// friendlier error for the reflection loop.
func validateReadOnly(query string) string {
	trimmed := strings.TrimSpace(query)
	trimmed = strings.TrimSuffix(trimmed, ";")

	upper := strings.ToUpper(strings.TrimSpace(trimmed))
	if !strings.HasPrefix(upper, "SELECT") && !strings.HasPrefix(upper, "WITH") {
		return "only read-only SELECT queries are permitted"
	}
	return ""
}
