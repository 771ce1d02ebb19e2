// Package report prints batch results, optionally filtered by a jq query.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/itchyny/gojq"
)

// Render writes results as indented JSON. A non-empty query is applied to
// the result array first and every value it yields is written in turn.
func Render(w io.Writer, results []any, query string) error {
	doc, err := normalize(results)
	if err != nil {
		return err
	}
	if query == "" {
		return write(w, doc)
	}

	values, err := Query(doc, query)
	if err != nil {
		return err
	}
	for _, v := range values {
		if err := write(w, v); err != nil {
			return err
		}
	}
	return nil
}

// Query runs a jq expression against a JSON-shaped value.
func Query(input any, expr string) ([]any, error) {
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq expression %q: %w", expr, err)
	}

	var out []any
	iter := query.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, ok := v.(error); ok {
			var halt *gojq.HaltError
			if errors.As(err, &halt) && halt.Value() == nil {
				break
			}
			return nil, fmt.Errorf("jq evaluation error for %q: %w", expr, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// normalize turns typed results into the plain JSON values gojq accepts.
func normalize(results []any) (any, error) {
	if results == nil {
		results = []any{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return nil, fmt.Errorf("encode results: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode results: %w", err)
	}
	return doc, nil
}

func write(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n", data)
	return err
}
