// Package report renders red-team scan and agent evaluation results produced
// by external tooling as human readable text.
package report

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/tidwall/gjson"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var (
	// ErrResultsNotFound is returned when the results file does not exist
	ErrResultsNotFound = errors.New("results file not found")

	// ErrInvalidJSON is returned when the results file is not valid JSON
	ErrInvalidJSON = errors.New("invalid JSON in results file")
)

const (
	rule    = "================================================================================"
	subRule = "----------------------------------------"
)

// resultsError keeps the user facing wording while matching the sentinels
type resultsError struct {
	msg string
	err error
}

func (e *resultsError) Error() string { return e.msg }
func (e *resultsError) Unwrap() error { return e.err }

// loadResults reads and validates a JSON results document
func loadResults(path string) (gjson.Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return gjson.Result{}, &resultsError{
				msg: fmt.Sprintf("Results file '%s' not found.", path),
				err: ErrResultsNotFound,
			}
		}
		return gjson.Result{}, fmt.Errorf("failed to read results: %w", err)
	}

	if !gjson.ValidBytes(data) {
		return gjson.Result{}, &resultsError{
			msg: fmt.Sprintf("Invalid JSON in results file '%s'.", path),
			err: ErrInvalidJSON,
		}
	}

	return gjson.ParseBytes(data), nil
}

// title upper-cases the first letter of each word. Underscores separate
// words too, so "hate_unfairness" becomes "Hate_Unfairness". Casers are
// stateful, so each call gets its own.
func title(s string) string {
	caser := cases.Title(language.English)
	parts := strings.Split(s, "_")
	for i, part := range parts {
		parts[i] = caser.String(part)
	}
	return strings.Join(parts, "_")
}

// display renders a scalar the way the result files' producers print them
func display(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	case gjson.True:
		return "True"
	case gjson.False:
		return "False"
	case gjson.Null:
		return "None"
	default:
		return v.Raw
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// printer accumulates the first write error so report bodies stay linear
type printer struct {
	w   io.Writer
	err error
}

func (p *printer) line(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format+"\n", args...)
}

func (p *printer) section(heading string) {
	p.line("\n%s", heading)
	p.line(subRule)
}

func (p *printer) banner(text string) {
	p.line(rule)
	p.line(text)
	p.line(rule)
}

// joinStrings joins a JSON array of strings with ", "
func joinStrings(v gjson.Result) string {
	var parts []string
	for _, item := range v.Array() {
		parts = append(parts, item.String())
	}
	return strings.Join(parts, ", ")
}

func stringOr(v gjson.Result, fallback string) string {
	if !v.Exists() || v.Type == gjson.Null {
		return fallback
	}
	return v.String()
}

func displayOr(v gjson.Result, fallback string) string {
	if !v.Exists() {
		return fallback
	}
	return display(v)
}
