// Package functions hosts the remote business functions invoked by name
// with a JSON-like body, in process or over gRPC.
package functions

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Function names
const (
	CreateAgencyAdmin     = "create-agency-admin"
	CreateCheckoutSession = "create-checkout-session"
)

var (
	ErrUnknownFunction = errors.New("unknown function")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrNotFound        = errors.New("not found")
)

// Handler runs one function
type Handler func(ctx context.Context, body map[string]any) (map[string]any, error)

// Local is an in-process function registry
type Local struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewLocal() *Local {
	return &Local{handlers: make(map[string]Handler)}
}

func (l *Local) Register(name string, h Handler) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.handlers[name] = h
}

// Names lists the registered functions, sorted
func (l *Local) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.handlers))
	for name := range l.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (l *Local) Invoke(ctx context.Context, name string, body map[string]any) (map[string]any, error) {
	l.mu.RLock()
	h, ok := l.handlers[name]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, name)
	}
	if body == nil {
		body = map[string]any{}
	}
	return h(ctx, body)
}

func stringArg(body map[string]any, key string) (string, error) {
	v, ok := body[key].(string)
	if !ok || v == "" {
		return "", fmt.Errorf("%w: %s is required", ErrInvalidArgument, key)
	}
	return v, nil
}
