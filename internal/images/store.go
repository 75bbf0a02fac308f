package images

import "context"

// Store uploads a normalized image and returns its public URL.
type Store interface {
	Upload(ctx context.Context, data []byte) (string, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context, data []byte) (string, error)

func (f StoreFunc) Upload(ctx context.Context, data []byte) (string, error) {
	return f(ctx, data)
}
