package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/insurewright/onboarding/internal/catalog"
)

// definitionContextKey is the context key for the resolved decision definition.
type definitionContextKey struct{}

// ErrNoDefinitionInContext indicates no definition was found in the context.
var ErrNoDefinitionInContext = errors.New("no decision definition in context")

// WithDefinition returns a new context with def attached.
func WithDefinition(ctx context.Context, def catalog.Definition) context.Context {
	return context.WithValue(ctx, definitionContextKey{}, def)
}

// DefinitionFromContext extracts the decision definition from the context.
func DefinitionFromContext(ctx context.Context) (catalog.Definition, error) {
	def, ok := ctx.Value(definitionContextKey{}).(catalog.Definition)
	if !ok || def.ID == "" {
		return catalog.Definition{}, ErrNoDefinitionInContext
	}
	return def, nil
}

// MustDefinitionFromContext extracts the definition or panics.
// Use only below DecisionCtx.
func MustDefinitionFromContext(ctx context.Context) catalog.Definition {
	def, err := DefinitionFromContext(ctx)
	if err != nil {
		panic("decision definition not in context: middleware misconfiguration")
	}
	return def
}

// DecisionCtx resolves the {id} URL parameter against the catalog and stores
// the definition in the request context. Unknown ids get a 404.
func DecisionCtx(cat *catalog.Catalog) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := chi.URLParam(r, "id")
			def, ok := cat.Decision(id)
			if !ok {
				WriteProblem(w, r, http.StatusNotFound, "Decision \""+id+"\" not found")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithDefinition(r.Context(), def)))
		})
	}
}
