package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/reviewpilot/engine/internal/api/handlers"
	mw "github.com/reviewpilot/engine/internal/api/middleware"
)

type Dependencies struct {
	HMACSecret     []byte
	AuthHandler    *handlers.AuthHandler
	CoursesHandler *handlers.CoursesHandler
	GraphsHandler  *handlers.GraphsHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	// Built-in middleware
	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	// Health endpoints
	hh := handlers.NewHealthHandler()
	r.Get("/healthz", hh.Liveness)
	r.Get("/readyz", hh.Readiness)

	// Swagger documentation
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/docs/doc.json"),
	))

	r.Route("/api/v1", func(api chi.Router) {
		// Auth routes (public)
		api.Route("/auth", func(ar chi.Router) {
			ar.Post("/register", dep.AuthHandler.Register)
			ar.Post("/login", dep.AuthHandler.Login)
		})

		// Course routes (authenticated)
		api.Route("/courses", func(cr chi.Router) {
			cr.Use(mw.Auth(dep.HMACSecret))
			cr.Get("/", dep.CoursesHandler.List)
			cr.Post("/", dep.CoursesHandler.Create)
			cr.Get("/{courseID}", dep.CoursesHandler.Get)
			cr.Delete("/{courseID}", dep.CoursesHandler.Delete)
		})

		// Knowledge graph routes: reads are public, writes require the
		// course owner or an admin (checked in the handler).
		api.Route("/graphs/{courseID}", func(gr chi.Router) {
			gr.Get("/nodes", dep.GraphsHandler.ListNodes)
			gr.Get("/nodes/{nodeID}", dep.GraphsHandler.GetNode)
			gr.Get("/relations", dep.GraphsHandler.ListRelations)

			gr.Group(func(wr chi.Router) {
				wr.Use(mw.Auth(dep.HMACSecret))
				wr.Post("/nodes", dep.GraphsHandler.CreateNode)
				wr.Put("/nodes/{nodeID}", dep.GraphsHandler.UpdateNode)
				wr.Delete("/nodes/{nodeID}", dep.GraphsHandler.DeleteNode)
				wr.Post("/relations", dep.GraphsHandler.CreateRelation)
				wr.Put("/relations/{relationID}", dep.GraphsHandler.UpdateRelation)
				wr.Delete("/relations/{relationID}", dep.GraphsHandler.DeleteRelation)
			})
		})
	})

	return r
}
