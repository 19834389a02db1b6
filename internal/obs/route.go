package obs

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests chi could not route so 404 scans do not
// create one series per probed path.
const unmatchedRoute = "unmatched"

type routePatternKey struct{}

// WithRoutePattern pins the route label for a request, overriding whatever chi matches.
func WithRoutePattern(ctx context.Context, pattern string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, routePatternKey{}, pattern)
}

// RoutePatternFromContext returns the pinned route or, once routing has
// happened, the pattern chi matched. Outer middleware must call it after
// next.ServeHTTP returns; chi fills its route context in place.
func RoutePatternFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(routePatternKey{}).(string); ok && v != "" {
		return v
	}
	if rc := chi.RouteContext(ctx); rc != nil {
		return rc.RoutePattern()
	}
	return ""
}

func routeLabel(r *http.Request) string {
	if route := RoutePatternFromContext(r.Context()); route != "" {
		return route
	}
	return unmatchedRoute
}
