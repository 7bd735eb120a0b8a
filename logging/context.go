package logging

import (
	"context"

	"go.viam.com/utils"
)

// debugKeyField is the field name attached to entries a debug-mode context forced through.
const debugKeyField = "debug_key"

type debugKeyCtxKey struct{}

// EnableDebugMode marks ctx so that CDebug* calls made with it log regardless of level. An empty
// key is replaced by a random one; the key is attached to every entry logged this way.
func EnableDebugMode(ctx context.Context, key string) context.Context {
	if key == "" {
		key = utils.RandomAlphaString(6)
	}
	return context.WithValue(ctx, debugKeyCtxKey{}, key)
}

// DebugKey returns the key ctx was put into debug mode with.
func DebugKey(ctx context.Context) (string, bool) {
	key, ok := ctx.Value(debugKeyCtxKey{}).(string)
	return key, ok && key != ""
}

// IsDebugMode returns whether ctx has debug logging enabled.
func IsDebugMode(ctx context.Context) bool {
	_, ok := DebugKey(ctx)
	return ok
}

// CarryDebugMode copies the debug key of from, if any, onto to. Work detached from a request
// context keeps the request's debug logging this way.
func CarryDebugMode(to, from context.Context) context.Context {
	if key, ok := DebugKey(from); ok {
		return EnableDebugMode(to, key)
	}
	return to
}
