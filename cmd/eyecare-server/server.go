package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/eyecare/eyecare/internal/config"
	"github.com/eyecare/eyecare/internal/domain/anteriorchamber"
	"github.com/eyecare/eyecare/internal/domain/exam"
	"github.com/eyecare/eyecare/internal/domain/examination"
	"github.com/eyecare/eyecare/internal/domain/funduscopy"
	"github.com/eyecare/eyecare/internal/domain/ivi"
	"github.com/eyecare/eyecare/internal/domain/oct"
	"github.com/eyecare/eyecare/internal/domain/tonometry"
	"github.com/eyecare/eyecare/internal/domain/visus"
	"github.com/eyecare/eyecare/internal/platform/auth"
	"github.com/eyecare/eyecare/internal/platform/blobstore"
	"github.com/eyecare/eyecare/internal/platform/conformance"
	"github.com/eyecare/eyecare/internal/platform/db"
	"github.com/eyecare/eyecare/internal/platform/dicomfile"
	"github.com/eyecare/eyecare/internal/platform/middleware"
	"github.com/eyecare/eyecare/internal/platform/table"
	"github.com/eyecare/eyecare/internal/platform/terminology"
	"github.com/eyecare/eyecare/internal/web"
)

const (
	version       = "0.1.0"
	blobsPath     = "/api/v1/blobs"
	shutdownGrace = 10 * time.Second
)

// newRegistry returns the converters of every examination kind.
func newRegistry(catalog *ivi.Catalog) *exam.Registry {
	return exam.NewRegistry(
		tonometry.Converter{},
		visus.Converter{},
		anteriorchamber.Converter{},
		funduscopy.Converter{},
		oct.Converter{},
		ivi.Converter{Catalog: catalog},
	)
}

// newTerminology builds the code systems from every coding the converters
// can emit.
func newTerminology(registry *exam.Registry) (*terminology.Service, error) {
	codings := exam.SharedCodings()
	for _, kind := range registry.Kinds() {
		conv, err := registry.Get(kind)
		if err != nil {
			return nil, err
		}
		if src, ok := conv.(exam.CodeSource); ok {
			codings = append(codings, src.Codings()...)
		}
	}
	return terminology.New(terminology.FromCodings(codings...)...)
}

func newRenderer(cfg *config.Config, logger zerolog.Logger) (*table.Renderer, error) {
	views := table.DefaultConfig()
	if cfg.TableConfig != "" {
		var err error
		if views, err = table.LoadConfig(cfg.TableConfig); err != nil {
			return nil, err
		}
	}
	return table.NewRenderer(views, logger), nil
}

// newService wires the examination service. repo may be nil for callers
// that only preview conversions.
func newService(cfg *config.Config, repo examination.Repository, logger zerolog.Logger) (*examination.Service, *terminology.Service, error) {
	registry := newRegistry(ivi.DefaultCatalog())
	terms, err := newTerminology(registry)
	if err != nil {
		return nil, nil, fmt.Errorf("terminology: %w", err)
	}
	renderer, err := newRenderer(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("table views: %w", err)
	}
	svc := examination.NewService(repo, registry, renderer, logger)
	if cfg.ValidateOutput {
		checker, err := conformance.New(terms, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("conformance: %w", err)
		}
		svc.SetConformance(checker)
	}
	return svc, terms, nil
}

// server is a fully wired echo instance with its storage.
type server struct {
	echo    *echo.Echo
	storage *storage
}

func (s *server) close() {
	if s.storage != nil {
		s.storage.close()
	}
}

func buildServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*server, error) {
	st, err := openStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	srv, err := buildServerWith(cfg, st, logger)
	if err != nil {
		st.close()
		return nil, err
	}
	if cfg.StorageDriver == config.StorageSQLite {
		n, err := st.migrator.Up(ctx)
		if err != nil {
			st.close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		if n > 0 {
			logger.Info().Int("count", n).Msg("applied migrations")
		}
	}
	return srv, nil
}

func buildServerWith(cfg *config.Config, st *storage, logger zerolog.Logger) (*server, error) {
	svc, terms, err := newService(cfg, st.repo, logger)
	if err != nil {
		return nil, err
	}
	bodyLimit, err := cfg.BodyLimitBytes()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.SecurityHeaders())
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderAuthorization, echo.HeaderContentType, echo.HeaderAccept},
	}))
	e.Use(middleware.BodyLimit(bodyLimit, cfg.MaxUploadBytes(), blobsPath))
	e.Use(middleware.RequestTimeout(cfg.RequestTimeout, blobsPath))

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok", "version": version})
	})
	e.GET("/health/db", db.HealthHandler(st.health))

	authMW := auth.Middleware(cfg.ResolvedAuthMode(), auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		Audience:   cfg.AuthAudience,
		JWKSURL:    cfg.AuthJWKSURL,
		SigningKey: []byte(cfg.AuthSigningKey),
	})

	api := e.Group("/api/v1", authMW)
	fhirGroup := e.Group("/fhir", authMW)

	examination.NewHandler(svc, logger).RegisterRoutes(api, fhirGroup)
	terminology.NewHandler(terms).RegisterRoutes(fhirGroup)

	blobs := api.Group("", auth.RequireRoleForWrites(auth.RoleClinician))
	blobstore.NewBlobHandler(
		blobstore.NewInMemoryBlobStore(cfg.MaxUploadBytes()),
		dicomfile.Inspect,
		blobsPath,
		logger,
	).RegisterRoutes(blobs)

	pages, err := web.NewHandler(svc, ivi.DefaultCatalog(), blobsPath, logger)
	if err != nil {
		return nil, err
	}
	if err := pages.RegisterRoutes(e, authMW); err != nil {
		return nil, err
	}

	return &server{echo: e, storage: st}, nil
}

func runServer(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.ResolvedAuthMode() == auth.ModeDev {
		logger.Warn().Msg("authentication disabled: every request runs as " + auth.DevUser)
	}

	srv, err := buildServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer srv.close()

	addr := ":" + cfg.Port
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info().
			Str("addr", addr).
			Str("storage", cfg.StorageDriver).
			Bool("tls", cfg.TLSEnabled).
			Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = srv.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = srv.echo.Start(addr)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Msg("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.echo.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
