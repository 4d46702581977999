// Package server routes requests for a compiled WebGL build and its API.
//
// Every request passes through the same middleware stack: security headers,
// CORS, request logging, a fault boundary, body parsing, and rate limiting of
// the API. It is then answered by exactly one route. Requests that match no
// explicit route run through an ordered list of asset routes, where the first
// route to handle the request wins and any route may decline it:
//
//  1. A logical build artifact name under /Build is answered with the
//     decompressed content of its precompressed file.
//  2. A precompressed build artifact under /Build is passed through verbatim,
//     with a Content-Encoding header.
//  3. Any other file under the public root is served as is.
//
// A request that no route handles is answered with a JSON 404.
package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/ahamlinman/webglhost/internal/api"
	"github.com/ahamlinman/webglhost/internal/assets"
	"github.com/ahamlinman/webglhost/internal/config"
	"github.com/ahamlinman/webglhost/internal/lifecycle"
	"github.com/ahamlinman/webglhost/internal/watch"
)

const (
	apiPrefix    = "/api/"
	maxBodyBytes = 1 << 20

	DefaultRateLimit  = 100
	DefaultRateWindow = time.Minute
)

// Options configures a Server.
type Options struct {
	Config config.Config

	// PublicDir is the root of the compiled build.
	PublicDir string

	// CacheBytes bounds the memory used to cache decompressed artifacts. Zero
	// disables the cache.
	CacheBytes int

	// RateLimit requests per client are allowed under /api/ within each
	// RateWindow. Zero values select DefaultRateLimit and DefaultRateWindow.
	RateLimit  int
	RateWindow time.Duration
}

// Server is an http.Handler serving a compiled WebGL build.
type Server struct {
	cfg       config.Config
	publicDir string
	files     assets.FileSystem
	artifacts *assets.Artifacts
	store     *assets.Store
	api       *api.Handler
	log       *zap.Logger
	router    chi.Router

	assetRoutes []assetRoute

	fallthroughMissing *metrics.Counter
	fallthroughCorrupt *metrics.Counter
	faults             *metrics.Counter
	rateLimited        *metrics.Counter
}

// New creates a Server. The lifecycle state in state is reported through the
// API, and all counters are registered in set.
func New(opts Options, state *watch.Value[lifecycle.State], set *metrics.Set, logger *zap.Logger) *Server {
	if opts.RateLimit <= 0 {
		opts.RateLimit = DefaultRateLimit
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = DefaultRateWindow
	}

	s := &Server{
		cfg:       opts.Config,
		publicDir: opts.PublicDir,
		files:     assets.FileSystem{FileSystem: http.Dir(opts.PublicDir)},
		artifacts: assets.NewArtifacts(opts.Config.BuildNames, opts.Config.Compression.Suffix()),
		store:     assets.NewStore(opts.CacheBytes, set),
		api:       api.NewHandler(state, set, logger),
		log:       logger,

		fallthroughMissing: set.GetOrCreateCounter(`webglhost_artifact_fallthrough_total{reason="missing"}`),
		fallthroughCorrupt: set.GetOrCreateCounter(`webglhost_artifact_fallthrough_total{reason="corrupt"}`),
		faults:             set.GetOrCreateCounter("webglhost_handler_faults_total"),
		rateLimited:        set.GetOrCreateCounter("webglhost_rate_limited_total"),
	}
	s.assetRoutes = []assetRoute{
		s.serveDecompressedAlias,
		s.servePrecompressed,
		s.serveStatic,
	}

	s.checkPublicDir()
	s.router = s.routes(opts.RateLimit, opts.RateWindow)
	return s
}

// Router returns the router that s dispatches to, so that callers may add
// routes of their own.
func (s *Server) Router() chi.Router { return s.router }

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes(rateLimit int, rateWindow time.Duration) chi.Router {
	r := chi.NewRouter()
	r.Use(
		securityHeaders(s.cfg.Production()),
		corsPolicy(s.cfg),
		s.logRequests,
		s.recoverFaults,
		middleware.RequestSize(maxBodyBytes),
		parseBody,
		s.limitAPI(rateLimit, rateWindow),
		middleware.GetHead,
	)

	r.Get("/", s.serveLanding)
	s.api.Register(r)

	r.NotFound(s.serveAssets)
	r.MethodNotAllowed(api.NotFound)
	return r
}

func (s *Server) checkPublicDir() {
	index := filepath.Join(s.publicDir, "index.html")
	if _, err := os.Stat(index); errors.Is(err, fs.ErrNotExist) {
		s.log.Error("Missing public directory or index page; the game will not be served correctly",
			zap.String("publicDir", s.publicDir))
	}
}
