package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	appDelivery "jobtrail-backend/internal/application/delivery"
	authUsecase "jobtrail-backend/internal/auth/usecase"
	emailDelivery "jobtrail-backend/internal/email/delivery"
	filterDelivery "jobtrail-backend/internal/filter/delivery"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handler struct {
	authUsecase        authUsecase.AuthUsecase
	emailHandler       *emailDelivery.EmailHandler
	applicationHandler *appDelivery.ApplicationHandler
	domainHandler      *filterDelivery.DomainFilterHandler
	logger             *zap.Logger
}

func NewHandler(
	authUc authUsecase.AuthUsecase,
	emailHandler *emailDelivery.EmailHandler,
	applicationHandler *appDelivery.ApplicationHandler,
	domainHandler *filterDelivery.DomainFilterHandler,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		authUsecase:        authUc,
		emailHandler:       emailHandler,
		applicationHandler: applicationHandler,
		domainHandler:      domainHandler,
		logger:             logger.Named("http"),
	}
}

// Engine builds the gin engine with middleware and every route attached.
func (h *Handler) Engine() *gin.Engine {
	r := gin.New()
	r.Use(requestLogger(h.logger), gin.CustomRecovery(func(c *gin.Context, recovered any) {
		h.logger.Error("panic recovered", zap.Any("panic", recovered), zap.String("path", c.Request.URL.Path))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": "internal"})
	}))

	// CORS middleware
	r.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		} else {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		}

		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	SetupRoutes(r, h.authUsecase, h.emailHandler, h.applicationHandler, h.domainHandler)
	return r
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (h *Handler) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h.Engine(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		h.logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	h.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("took", time.Since(start)),
		}
		if account := c.GetString("accountID"); account != "" {
			fields = append(fields, zap.String("account", account))
		}
		if len(c.Errors) > 0 {
			logger.Error("request failed", append(fields, zap.String("errors", c.Errors.String()))...)
			return
		}
		logger.Debug("request", fields...)
	}
}
