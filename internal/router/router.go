package router

import (
	"net/http"

	"github.com/brewline-pos/api/internal/config"
	"github.com/brewline-pos/api/internal/database"
	"github.com/brewline-pos/api/internal/enum"
	"github.com/brewline-pos/api/internal/handler"
	mw "github.com/brewline-pos/api/internal/middleware"
	"github.com/brewline-pos/api/internal/service"
	"github.com/brewline-pos/api/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// New creates a Chi router with all application routes wired up.
// Applies authentication, branch scoping, and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, pool *pgxpool.Pool, hub *ws.Hub) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "https://app.brewline.io"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	// Auth routes (public)
	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	// WebSocket route (handles auth internally via query param)
	r.Get("/ws/branches/{bid}/orders", func(w http.ResponseWriter, r *http.Request) {
		ws.ServeWS(hub, cfg.JWTSecret, w, r)
	})

	entitlements := service.NewEntitlementService(queries)
	lifecycle := service.NewLifecycleService(queries)
	menuService := service.NewMenuService(queries)
	orderService := service.NewOrderService(pool, func(db database.DBTX) service.OrderStore {
		return database.New(db)
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		// Tenant-level management, not branch-scoped
		branchHandler := handler.NewBranchHandler(queries, entitlements)
		r.Route("/branches", func(r chi.Router) {
			r.Get("/", branchHandler.List)
			r.With(mw.RequireRole(enum.UserRoleOwner)).Post("/", branchHandler.Create)

			r.Route("/{bid}", func(r chi.Router) {
				r.Get("/", branchHandler.Get)
				r.With(mw.RequireRole(enum.UserRoleOwner)).Put("/", branchHandler.Update)
				r.With(mw.RequireRole(enum.UserRoleOwner)).Delete("/", branchHandler.Delete)

				// Branch-scoped operations
				r.Group(func(r chi.Router) {
					r.Use(mw.RequireBranch)

					menuItemHandler := handler.NewMenuItemHandler(queries, menuService, entitlements)
					r.Route("/menu-items", func(r chi.Router) {
						r.Get("/", menuItemHandler.List)
						r.Get("/sellable", menuItemHandler.ListSellable)
						r.Group(func(r chi.Router) {
							r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
							r.Post("/", menuItemHandler.Create)
							r.Put("/{id}", menuItemHandler.Update)
							r.Put("/{id}/sharing", menuItemHandler.UpdateSharing)
							r.Delete("/{id}", menuItemHandler.Delete)
						})
					})

					orderHandler := handler.NewOrderHandler(orderService, lifecycle, queries, hub)
					r.Route("/orders", orderHandler.RegisterRoutes)

					reportsHandler := handler.NewReportsHandler(queries, lifecycle)
					r.With(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager)).Route("/reports", reportsHandler.RegisterRoutes)
				})
			})
		})

		// Categories are tenant-wide
		categoryHandler := handler.NewCategoryHandler(queries)
		r.Route("/categories", func(r chi.Router) {
			r.With(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager)).Post("/", categoryHandler.Create)
			r.With(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager)).Put("/{id}", categoryHandler.Update)
			r.With(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager)).Delete("/{id}", categoryHandler.Delete)
			r.Get("/", categoryHandler.List)
		})

		// Employee management
		userHandler := handler.NewUserHandler(queries, entitlements)
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.UserRoleOwner, enum.UserRoleManager))
			r.Route("/users", userHandler.RegisterRoutes)
		})
	})

	log.Info().Msg("router initialized")
	return r
}
