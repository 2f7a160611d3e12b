package linker

import "context"

// Phase names one half of a link pass.
type Phase string

const (
	PhaseSymbolMaps Phase = "symbol_maps"
	PhaseSourceMaps Phase = "source_maps"
)

// Observer brackets each phase. The returned function is called when the
// phase ends. Observers never affect link output.
type Observer interface {
	Begin(ctx context.Context, phase Phase) (context.Context, func())
}

// NopObserver does nothing.
type NopObserver struct{}

func (NopObserver) Begin(ctx context.Context, _ Phase) (context.Context, func()) {
	return ctx, func() {}
}
