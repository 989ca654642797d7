package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"go.ngs.io/climate-preproc/internal/domain"
	"go.ngs.io/climate-preproc/internal/usecase"
)

// RequestIDHeader carries the request ID in requests and responses.
const RequestIDHeader = "X-Request-ID"

// RouterConfig configures SetupRouter.
type RouterConfig struct {
	// AllowedOrigins lists CORS origins. Empty allows all origins.
	AllowedOrigins []string
	Log            logrus.FieldLogger
}

// SetupRouter creates and configures the Gin router.
func SetupRouter(preprocessUC *usecase.PreprocessUseCase, cfg RouterConfig) *gin.Engine {
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		if err := registerValidators(v); err != nil {
			cfg.Log.WithError(err).Error("Failed to register request validators")
			panic(err)
		}
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestID(), requestLogger(cfg.Log))

	// Setup CORS middleware.
	corsConfig := cors.DefaultConfig()
	if len(cfg.AllowedOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.AllowedOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.ExposeHeaders = []string{RequestIDHeader}
	router.Use(cors.New(corsConfig))

	handler := NewHandler(preprocessUC, cfg.Log)

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.GET("/operators", handler.GetOperators)

	preprocess := v1.Group("/preprocess")
	preprocess.POST("/area-statistics", handler.Statistics(usecase.AreaStatistics))
	preprocess.POST("/zonal-statistics", handler.Statistics(usecase.ZonalStatistics))
	preprocess.POST("/meridional-statistics", handler.Statistics(usecase.MeridionalStatistics))
	preprocess.POST("/extract-region", handler.ExtractRegion)
	preprocess.POST("/extract-named-regions", handler.ExtractNamedRegions)

	v1.GET("/derive", handler.GetDerivedVariables)
	v1.POST("/derive/:name", handler.Derive)

	v1.GET("/fixes", handler.GetFixes)
	v1.POST("/fixes/apply", handler.ApplyFixes)

	// Health check.
	router.GET("/health", handler.HealthCheck)

	return router
}

// registerValidators adds the custom binding tags to v. Registration is
// idempotent.
func registerValidators(v *validator.Validate) error {
	return v.RegisterValidation("operator", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseOperator(fl.Field().String())
		return err == nil
	})
}

// requestID tags each request with an ID, reusing one sent by the client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func requestLogger(log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := log.WithFields(logrus.Fields{
			"request_id": c.GetString("request_id"),
			"method":     c.Request.Method,
			"path":       c.FullPath(),
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Error("Request failed")
			return
		}
		entry.Info("Request served")
	}
}
