package restserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/info3g/hikstar-celery/internal/log"
	"github.com/info3g/hikstar-celery/internal/store"
	"github.com/info3g/hikstar-celery/internal/telemetry"
	"github.com/info3g/hikstar-celery/pkg/config"
)

// shutdownTimeout bounds how long in-flight requests get once the context ends
const shutdownTimeout = 10 * time.Second

// Controller represents the REST server controller
type Controller struct {
	ctx        context.Context
	wg         *sync.WaitGroup
	restConfig config.ServerData
	Server     http.Server
	store      *store.Store
	logger     *zap.SugaredLogger
	handlers   *Handlers
}

// NewController creates a new REST server controller
func NewController(ctx context.Context, wg *sync.WaitGroup, rc config.ServerData, st *store.Store, logger *zap.SugaredLogger) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("REST server needs a store")
	}

	ctrl := &Controller{
		ctx:        ctx,
		wg:         wg,
		restConfig: rc,
		store:      st,
		logger:     logger,
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if rc.ListenAddr == "" {
		logger.Info("server.listen-addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		rc.ListenAddr = "0.0.0.0"
	}

	if rc.Port == 0 {
		logger.Info("server.port not provided; defaulting to 8080")
		rc.Port = 8080
	}
	ctrl.restConfig = rc

	ctrl.handlers = NewHandlers(st, logger)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", rc.ListenAddr, rc.Port)
	ctrl.Server.Handler = ctrl.Handler()
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// StartController starts the REST server
func (c *Controller) StartController() error {
	c.logger.Infof("starting REST server on %s...", c.Server.Addr)
	c.wg.Add(1)

	go func() {
		defer c.wg.Done()

		var err error
		if c.restConfig.TLSCertPath != "" && c.restConfig.TLSKeyPath != "" {
			err = c.Server.ListenAndServeTLS(c.restConfig.TLSCertPath, c.restConfig.TLSKeyPath)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != http.ErrServerClosed {
			c.logger.Errorf("REST server error: %v", err)
		}
	}()

	go func() {
		<-c.ctx.Done()
		c.logger.Info("shutting down the REST server...")
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := c.Server.Shutdown(ctx); err != nil {
			c.logger.Errorf("REST server shutdown: %v", err)
		}
	}()

	return nil
}

// Handler returns the full middleware chain and router
func (c *Controller) Handler() http.Handler {
	var h http.Handler = c.setupRouter()

	if c.restConfig.EnableCORS {
		h = handlers.CORS(
			handlers.AllowedOrigins([]string{"*"}),
			handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete}),
			handlers.AllowedHeaders([]string{"Content-Type"}),
		)(h)
	}

	return handlers.RecoveryHandler(
		handlers.RecoveryLogger(zap.NewStdLog(c.logger.Desugar())),
	)(h)
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(log.HTTPLogger(c.logger), telemetry.Middleware)

	h := c.handlers

	router.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)

	api := router.PathPrefix("/api").Subrouter()

	// Read side used by the map and trail pages
	api.HandleFunc("/trail-sections/graph", h.GetGraph).Methods(http.MethodGet)
	api.HandleFunc("/trail-sections/graph/components", h.GetGraphComponents).Methods(http.MethodGet)
	api.HandleFunc("/trails/{id:[0-9]+}", h.GetTrail).Methods(http.MethodGet)
	api.HandleFunc("/trails/{id:[0-9]+}/activities", h.GetTrailActivities).Methods(http.MethodGet)
	api.HandleFunc("/trails/{id:[0-9]+}/recompute", h.RecomputeTrail).Methods(http.MethodPost)
	api.HandleFunc("/activities", h.ListActivities).Methods(http.MethodGet)
	api.HandleFunc("/locations/{id:[0-9]+}", h.GetLocation).Methods(http.MethodGet)

	// Admin writes
	admin := api.PathPrefix("/admin").Subrouter()
	admin.HandleFunc("/trails", h.SaveTrail).Methods(http.MethodPost)
	admin.HandleFunc("/trails/{id:[0-9]+}", h.SaveTrail).Methods(http.MethodPut)
	admin.HandleFunc("/trails/{id:[0-9]+}", h.DeleteTrail).Methods(http.MethodDelete)
	admin.HandleFunc("/trail-sections", h.SaveTrailSection).Methods(http.MethodPost)
	admin.HandleFunc("/trail-sections/bulk-update", h.BulkUpdateSectionActivities).Methods(http.MethodPost)
	admin.HandleFunc("/trail-sections/merge-duplicates", h.MergeDuplicateSections).Methods(http.MethodPost)
	admin.HandleFunc("/trail-sections/{id:[0-9]+}", h.SaveTrailSection).Methods(http.MethodPut)
	admin.HandleFunc("/activities", h.SaveActivity).Methods(http.MethodPost)
	admin.HandleFunc("/activities/{id:[0-9]+}", h.SaveActivity).Methods(http.MethodPut)
	admin.HandleFunc("/locations", h.SaveLocation).Methods(http.MethodPost)
	admin.HandleFunc("/locations/{id:[0-9]+}", h.SaveLocation).Methods(http.MethodPut)
	admin.HandleFunc("/recompute", h.RecomputeAll).Methods(http.MethodPost)

	return router
}
