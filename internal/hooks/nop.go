// Package hooks provides default Hooks implementations.
package hooks

import (
	"context"

	"github.com/arloliu/elector/types"
)

// NopHooks implements Hooks with no-op callbacks.
//
// This is the default implementation used when no custom hooks are provided,
// eliminating the need for nil checks throughout the codebase.
type NopHooks struct{}

// Compile-time assertions that NopHooks implements hook callbacks.
var (
	_ func(context.Context) error        = (*NopHooks)(nil).OnElected
	_ func(context.Context) error        = (*NopHooks)(nil).OnRetired
	_ func(context.Context, error) error = (*NopHooks)(nil).OnError
)

// NewNop creates a new no-op hooks implementation.
//
// Returns:
//   - types.Hooks: Hooks with no-op implementations
func NewNop() types.Hooks {
	h := &NopHooks{}
	return types.Hooks{
		OnElected: h.OnElected,
		OnRetired: h.OnRetired,
		OnError:   h.OnError,
	}
}

// Fill returns a copy of hooks with every nil callback replaced by its no-op
// counterpart.
//
// Parameters:
//   - hooks: User-supplied hooks, may be nil
//
// Returns:
//   - types.Hooks: Hooks whose callbacks are all non-nil
func Fill(hooks *types.Hooks) types.Hooks {
	out := NewNop()
	if hooks == nil {
		return out
	}

	if hooks.OnElected != nil {
		out.OnElected = hooks.OnElected
	}
	if hooks.OnRetired != nil {
		out.OnRetired = hooks.OnRetired
	}
	if hooks.OnError != nil {
		out.OnError = hooks.OnError
	}

	return out
}

// OnElected is a no-op implementation.
func (h *NopHooks) OnElected(_ context.Context) error {
	return nil
}

// OnRetired is a no-op implementation.
func (h *NopHooks) OnRetired(_ context.Context) error {
	return nil
}

// OnError is a no-op implementation.
func (h *NopHooks) OnError(_ context.Context, _ error) error {
	return nil
}
