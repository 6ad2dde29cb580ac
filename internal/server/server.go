package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/supreset/identity/internal/api"
	"github.com/supreset/identity/internal/auth"
	"github.com/supreset/identity/internal/config"
)

type Server struct {
	config     *config.AppConfig
	log        *zap.Logger
	router     *gin.Engine
	httpServer *http.Server
	grpcServer *grpc.Server
	health     *health.Server
}

type Params struct {
	fx.In

	Config      *config.AppConfig
	Logger      *zap.Logger
	AuthHandler *auth.Handler
	GRPCHandler *auth.GRPCHandler
}

func NewServer(p Params) *Server {
	if p.Config.Env != EnvDevelopment {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		accessLog(p.Logger),
		auth.Recovery(p.Logger, p.Config.Server.ExposeInternalErrors),
	)
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	p.AuthHandler.Mount(router)
	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": "route not found"})
	})

	grpcServer := grpc.NewServer(
		grpc.UnaryInterceptor(p.GRPCHandler.UnaryInterceptor()),
		grpc.MaxRecvMsgSize(p.Config.GRPC.MaxReceiveMessageSize),
		grpc.MaxSendMsgSize(p.Config.GRPC.MaxSendMessageSize),
	)

	auth.RegisterIdentityServer(grpcServer, p.GRPCHandler)

	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(api.IdentityService, healthpb.HealthCheckResponse_SERVING)

	if p.Config.GRPC.EnableReflection {
		reflection.Register(grpcServer)
	}

	return &Server{
		config: p.Config,
		log:    p.Logger,
		router: router,
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("%s:%s", p.Config.Server.Host, p.Config.Server.Port),
			Handler:      router,
			ReadTimeout:  p.Config.Server.ReadTimeout,
			WriteTimeout: p.Config.Server.WriteTimeout,
		},
		grpcServer: grpcServer,
		health:     healthServer,
	}
}

// Router exposes the HTTP handler, mainly for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

func (s *Server) GRPC() *grpc.Server {
	return s.grpcServer
}

// Start blocks serving HTTP and, when enabled, gRPC. It returns as soon as
// the first listener stops.
func (s *Server) Start() error {
	errs := make(chan error, 2)

	s.log.Info("Starting HTTP server", zap.String("address", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errs <- fmt.Errorf("failed to serve http: %w", err)
			return
		}
		errs <- nil
	}()

	if s.config.GRPC.Enabled {
		addr := fmt.Sprintf("%s:%s", s.config.GRPC.Host, s.config.GRPC.Port)
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen: %w", err)
		}

		s.log.Info("Starting gRPC server",
			zap.String("address", addr),
			zap.Object("config", serverConfigToField(s.config)),
		)
		go func() {
			if err := s.grpcServer.Serve(lis); err != nil {
				errs <- fmt.Errorf("failed to serve grpc: %w", err)
				return
			}
			errs <- nil
		}()
	}

	return <-errs
}

func serverConfigToField(config *config.AppConfig) zapcore.ObjectMarshaler {
	return zapcore.ObjectMarshalerFunc(func(enc zapcore.ObjectEncoder) error {
		enc.AddString("environment", config.Env)
		enc.AddBool("reflection_enabled", config.GRPC.EnableReflection)
		enc.AddInt("max_receive_size", config.GRPC.MaxReceiveMessageSize)
		enc.AddInt("max_send_size", config.GRPC.MaxSendMessageSize)
		return nil
	})
}

func (s *Server) Stop(ctx context.Context) {
	s.log.Info("shutting down servers")
	s.health.Shutdown()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown did not complete", zap.Error(err))
	}

	stopped := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-ctx.Done():
		s.grpcServer.Stop()
	}
}

func accessLog(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		log.Info("http request",
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
