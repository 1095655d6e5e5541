package news

import "context"

// Source supplies the article collection the store loads and refreshes from.
type Source interface {
	Articles(ctx context.Context) ([]Article, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) ([]Article, error)

// Articles calls f.
func (f SourceFunc) Articles(ctx context.Context) ([]Article, error) {
	return f(ctx)
}

// KV is the key-value persistence the store snapshots bookmarks into.
type KV interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	Delete(ctx context.Context, key string) error
}
