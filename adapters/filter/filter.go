// Package filter applies jq programs to aggregated JSON payloads.
package filter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/artpar/fusion/ports"
)

// Engine compiles and runs jq programs. Compiled programs are cached
// per program text; destinations reuse their filter on every request.
type Engine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewEngine creates a jq engine with an empty program cache.
func NewEngine() *Engine {
	return &Engine{cache: make(map[string]*gojq.Code)}
}

// Apply runs program over the JSON input and returns every emitted
// value as compact JSON, newline-separated. Parse, compile, and
// runtime errors all fail the call; the output is not re-validated.
func (e *Engine) Apply(ctx context.Context, program string, input []byte) ([]byte, error) {
	code, err := e.compile(program)
	if err != nil {
		return nil, err
	}

	var doc any
	if err := json.Unmarshal(input, &doc); err != nil {
		return nil, fmt.Errorf("parse filter input: %w", err)
	}

	var out bytes.Buffer
	iter := code.RunWithContext(ctx, doc)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("run filter: %w", err)
		}
		text, err := gojq.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("encode filter output: %w", err)
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.Write(text)
	}
	return out.Bytes(), nil
}

func (e *Engine) compile(program string) (*gojq.Code, error) {
	e.mu.RLock()
	code, ok := e.cache[program]
	e.mu.RUnlock()
	if ok {
		return code, nil
	}

	query, err := gojq.Parse(program)
	if err != nil {
		return nil, fmt.Errorf("parse filter: %w", err)
	}
	code, err = gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("compile filter: %w", err)
	}

	e.mu.Lock()
	e.cache[program] = code
	e.mu.Unlock()
	return code, nil
}

// Ensure interface compliance.
var _ ports.Filter = (*Engine)(nil)
