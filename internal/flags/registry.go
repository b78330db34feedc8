package flags

import "context"

type ctxKey struct{}

// WithResolver returns a copy of ctx carrying r.
func WithResolver(ctx context.Context, r *Resolver) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the resolver stored by WithResolver.
func FromContext(ctx context.Context) (*Resolver, bool) {
	r, ok := ctx.Value(ctxKey{}).(*Resolver)
	return r, ok && r != nil
}
