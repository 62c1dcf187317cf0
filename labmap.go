package main

import (
	"bytes"
	"context"
	"embed"
	"encoding/json"
	"flag"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"labmap/pkg/api"
	"labmap/pkg/auth"
	"labmap/pkg/config"
	"labmap/pkg/logger"
	"labmap/pkg/session"
)

//go:embed public_html/*
var content embed.FS

var configPath = flag.String("config", "", "Path to a YAML config file (optional)")
var envFile = flag.String("env", "", "Path to a .env file with LABMAP_* overrides (default ./.env when present)")
var domain = flag.String("domain", "", "Use 80 and 443 ports. Automatic HTTPS cert via Let's Encrypt.")
var port = flag.Int("port", 8765, "Port for running the server")
var version = flag.Bool("version", false, "Show the application version")
var defaultLat = flag.Float64("default-lat", 0, "Default map latitude (overrides config)")
var defaultLon = flag.Float64("default-lon", 0, "Default map longitude (overrides config)")
var defaultZoom = flag.Int("default-zoom", 0, "Default map zoom (overrides config)")
var facetFlag = flag.String("facet", "", `Facet layout: "network", "region" or "none" (overrides config)`)
var logLevel = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
var logFormat = flag.String("log-format", "", `Log format: "console" or "json" (overrides config)`)
var logFile = flag.String("log-file", "", "Write logs to a rotating file instead of stderr")

var CompileVersion = "dev"

func main() {
	// 1. Flags and version
	flag.Parse()
	if *version {
		fmt.Printf("labmap version %s\n", CompileVersion)
		return
	}

	// 2. Configuration: defaults < config file < env < flags
	cfg, err := config.Load(*configPath, *envFile)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	applyFlags(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, closeLog := logger.New(logger.Options{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		File:   cfg.Logging.File,
	})
	defer func() { _ = closeLog() }()
	logf := logger.Logf(zl)
	errorf := logger.Errorf(zl)

	if *domain != "" && runtime.GOOS != "windows" && os.Geteuid() != 0 {
		zl.Warn("binding to :80 / :443 requires super-user rights; run with sudo or as root")
	}

	// 3. Sessions and credentials
	hashKey, blockKey, generated, err := cfg.SessionKeys()
	if err != nil {
		zl.Fatal("session keys", zap.Error(err))
	}
	if generated {
		zl.Warn("session keys not configured; generated random keys, sessions end on restart")
	}
	sessions, err := session.NewManager(session.Config{
		HashKey:      hashKey,
		BlockKey:     blockKey,
		CookieSecure: cfg.Session.Secure || *domain != "",
		Lifetime:     cfg.Session.Lifetime,
		IdleTimeout:  cfg.Session.IdleTimeout,
		MaxSessions:  cfg.Session.MaxActive,
	})
	if err != nil {
		zl.Fatal("session manager", zap.Error(err))
	}
	gate := auth.NewGate(cfg.Credentials)
	zl.Info("credential gate ready", zap.Int("identities", gate.Allowed()))

	// 4. One-shot data load; the listeners come up before it finishes
	dashCfg, err := dashboardConfig(cfg)
	if err != nil {
		zl.Fatal("dashboard config", zap.Error(err))
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	loaded := api.NewReadiness()
	go loadDataset(ctx, cfg, dashCfg, loaded, logf, errorf, logger.ParseLevel(cfg.Logging.Level) == zap.DebugLevel)

	// 5. Routes and static files
	images := api.NewResponseCache(time.Hour, 512)
	defer images.Close()

	staticFS, err := fs.Sub(content, "public_html")
	if err != nil {
		zl.Fatal("static fs", zap.Error(err))
	}
	page, err := newIndexPage(cfg)
	if err != nil {
		zl.Fatal("index template", zap.Error(err))
	}

	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	router.Use(chimw.RealIP)
	router.Use(chimw.Recoverer)
	router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))
	router.Get("/", page.ServeHTTP)
	router.Handle("/metrics", promhttp.Handler())
	api.NewHandler(loaded, sessions, gate, images, logf, errorf).Register(router)

	rootHandler := withServerHeader(router)

	// 6. HTTP/HTTPS servers
	if *domain != "" {
		go serveWithDomain(*domain, rootHandler, logf, errorf)
	} else {
		addr := fmt.Sprintf(":%d", *port)
		go func() {
			logf("HTTP server ➜ http://localhost%s", addr)
			srv := &http.Server{Addr: addr, Handler: rootHandler, ReadHeaderTimeout: 10 * time.Second}
			if err := srv.ListenAndServe(); err != nil {
				errorf("HTTP server error: %v", err)
			}
		}()
	}

	<-ctx.Done()
	logf("shutting down")
}

// applyFlags lets explicitly passed flags win over the config layers.
func applyFlags(cfg *config.Config) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "default-lat":
			cfg.Map.DefaultLat = *defaultLat
		case "default-lon":
			cfg.Map.DefaultLon = *defaultLon
		case "default-zoom":
			cfg.Map.DefaultZoom = *defaultZoom
		case "facet":
			cfg.Dashboard.Facet = *facetFlag
		case "log-level":
			cfg.Logging.Level = *logLevel
		case "log-format":
			cfg.Logging.Format = *logFormat
		case "log-file":
			cfg.Logging.File = *logFile
		}
	})
}

// indexPage renders the dashboard shell once; nothing in it depends on
// the request.
type indexPage struct {
	body []byte
}

func newIndexPage(cfg *config.Config) (*indexPage, error) {
	tmpl, err := template.New("index.html").Funcs(template.FuncMap{
		"toJSON": func(v any) (template.JS, error) {
			b, err := json.Marshal(v)
			return template.JS(b), err
		},
	}).ParseFS(content, "public_html/index.html")
	if err != nil {
		return nil, err
	}

	shown := CompileVersion
	if shown == "dev" {
		shown = "latest"
	}
	data := struct {
		Version string
		Map     any
	}{
		Version: shown,
		Map: map[string]any{
			"tileUrl":     cfg.Map.TileURL,
			"accessToken": cfg.MapAccessToken,
			"lat":         cfg.Map.DefaultLat,
			"lon":         cfg.Map.DefaultLon,
			"zoom":        cfg.Map.DefaultZoom,
			"maxZoom":     cfg.Map.ClusterMaxZoom,
		},
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, err
	}
	return &indexPage{body: buf.Bytes()}, nil
}

func (p *indexPage) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(p.body)
}
