package analysis

import (
	"context"
	"errors"
)

// Request is a single completion request. It is built per event.
type Request struct {
	SystemPrompt string
	UserText     string
	Temperature  float64
	MaxTokens    int
}

// Completer generates text for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Result is the outcome of one analysis: either a success carrying the
// model's text or a failure carrying the error.
type Result struct {
	Text string
	Err  error
}

// Success wraps analysis text.
func Success(text string) Result { return Result{Text: text} }

// Failure wraps a completion error.
func Failure(err error) Result {
	if err == nil {
		err = errors.New("unknown error")
	}
	return Result{Err: err}
}

// OK reports whether the result is a success.
func (r Result) OK() bool { return r.Err == nil }

// Analyzer sends text to a Completer with the bias-analysis prompt.
type Analyzer struct {
	completer Completer
}

// NewAnalyzer creates an Analyzer backed by c.
func NewAnalyzer(c Completer) *Analyzer {
	return &Analyzer{completer: c}
}

// Analyze issues exactly one completion request for text. Errors from the
// completer are returned as a Failure, never retried.
func (a *Analyzer) Analyze(ctx context.Context, text string) Result {
	req := Request{
		SystemPrompt: SystemPrompt,
		UserText:     text,
		Temperature:  Temperature,
		MaxTokens:    MaxTokens,
	}

	out, err := a.completer.Complete(ctx, req)
	if err != nil {
		return Failure(err)
	}
	return Success(out)
}
