// Package toast is the user-visible notification layer: short, non-blocking
// messages raised by views and the checkout pipeline.
package toast

import (
	"context"
	"sync"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

type Toast struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

type Toaster interface {
	Success(message string)
	Warning(message string)
	Error(message string)
}

// Recorder collects toasts so the HTTP layer can return them with the response.
type Recorder struct {
	mu     sync.Mutex
	toasts []Toast
}

func (r *Recorder) Success(message string) { r.add(LevelSuccess, message) }
func (r *Recorder) Warning(message string) { r.add(LevelWarning, message) }
func (r *Recorder) Error(message string)   { r.add(LevelError, message) }

func (r *Recorder) add(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toasts = append(r.toasts, Toast{Level: level, Message: message})
}

// Drain returns the collected toasts and resets the recorder.
func (r *Recorder) Drain() []Toast {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := r.toasts
	r.toasts = nil
	if out == nil {
		return []Toast{}
	}
	return out
}

// Discard drops every toast.
var Discard Toaster = discard{}

type discard struct{}

func (discard) Success(string) {}
func (discard) Warning(string) {}
func (discard) Error(string)   {}

type ctxKey struct{}

// NewContext returns a context whose toasts go to t.
func NewContext(ctx context.Context, t Toaster) context.Context {
	return context.WithValue(ctx, ctxKey{}, t)
}

// FromContext returns the request's Toaster, or fallback when none is attached.
func FromContext(ctx context.Context, fallback Toaster) Toaster {
	if t, ok := ctx.Value(ctxKey{}).(Toaster); ok && t != nil {
		return t
	}
	if fallback == nil {
		return Discard
	}
	return fallback
}
