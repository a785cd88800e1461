package connection

import "context"

// MediaCall is the capability surface for the stream's audio/video call.
// Adapters must implement every method; the rest of the system never probes
// for optional call features. Media internals (codecs, rendering) live
// entirely behind the adapter.
type MediaCall interface {
	Join(ctx context.Context) error
	Leave(ctx context.Context) error
	SetAudioEnabled(ctx context.Context, enabled bool) error
	SetVideoEnabled(ctx context.Context, enabled bool) error
}
