package sim

// A Middleware implements one concern of a component's per-cycle behavior.
type Middleware interface {
	// Tick updates the middleware state by one cycle and returns true if
	// any progress is made.
	Tick() bool
}

// A MiddlewareHolder runs a component's middlewares in registration order
// on every tick.
type MiddlewareHolder struct {
	middlewares []Middleware
}

// AddMiddleware registers a middleware.
func (holder *MiddlewareHolder) AddMiddleware(middleware Middleware) {
	holder.middlewares = append(holder.middlewares, middleware)
}

// Middlewares returns the registered middlewares.
func (holder *MiddlewareHolder) Middlewares() []Middleware {
	return holder.middlewares
}

// Tick runs all the middlewares for one cycle. It returns true if any of
// them made progress.
func (holder *MiddlewareHolder) Tick() bool {
	madeProgress := false

	for _, m := range holder.middlewares {
		madeProgress = m.Tick() || madeProgress
	}

	return madeProgress
}
