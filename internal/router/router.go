package router

import (
	"time"

	"tallerpagos/internal/config"
	"tallerpagos/internal/handler"
	"tallerpagos/internal/infra"
	"tallerpagos/internal/middleware"
	"tallerpagos/internal/model"
	"tallerpagos/internal/repository"
	"tallerpagos/internal/service"
	"tallerpagos/internal/worker"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// New wires all dependencies and returns a configured Gin engine plus the
// payment service (the main process hooks the overdue sweep onto it).
// Dependency graph: Handler ← Service ← Repository ← DB/Redis
func New(cfg *config.Config, db *gorm.DB, rdb *redis.Client, gatewayCB *infra.CircuitBreaker) (*gin.Engine, service.PagoService, *worker.ReciboWorker) {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Infrastructure ───────────────────────────────────────────────────────
	tokenCache := infra.NewRedisTokenCache(rdb)
	gateway := infra.NewPagoFacilClient(
		cfg.PagoFacilBaseURL, cfg.PagoFacilTokenSvc, cfg.PagoFacilTokenSecret,
		cfg.PagoFacilCallbackURL, tokenCache)
	mailer := infra.NewMailer(cfg)

	// ── Repositories ─────────────────────────────────────────────────────────
	usuarioRepo := repository.NewUsuarioRepository(db)
	ordenRepo := repository.NewOrdenTrabajoRepository(db)
	pagoRepo := repository.NewPagoRepository(db)
	detalleRepo := repository.NewPagoDetalleRepository(db)
	transaccionRepo := repository.NewTransaccionQRRepository(db)

	// ── Services ─────────────────────────────────────────────────────────────
	authSvc := service.NewAuthService(usuarioRepo, cfg)

	// Worker dispatcher — injected into services that enqueue async jobs
	dispatcher := worker.NewDispatcher(rdb)

	pagoSvc := service.NewPagoService(pagoRepo, detalleRepo, ordenRepo, usuarioRepo, dispatcher)
	conciliacionSvc := service.NewConciliacionService(pagoRepo, transaccionRepo, ordenRepo, pagoSvc, gateway, gatewayCB)

	reciboWorker := worker.NewReciboWorker(pagoRepo, mailer, cfg.PDFStoragePath)

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(authSvc)
	pagosH := handler.NewPagosHandler(pagoSvc)
	pagoFacilH := handler.NewPagoFacilHandler(conciliacionSvc)
	ordenesH := handler.NewOrdenesHandler(ordenRepo)

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(db, rdb, gatewayCB))

	// Auth (public)
	auth := r.Group("/v1/auth")
	{
		auth.POST("/login", middleware.LoginRateLimiter(), authH.Login)
		auth.POST("/refresh", authH.Refresh)
	}

	// Provider webhook — public by contract, always answers 200 + envelope.
	r.POST("/api/pagos/callback", pagoFacilH.Callback)

	// Protected routes
	jwtMW := middleware.JWTAuth(cfg.JWTSecret)
	v1 := r.Group("/v1", jwtMW)
	{
		personal := middleware.RequireTipo(model.TipoSecretaria, model.TipoPropietario)

		v1.GET("/ordenes/completadas", personal, ordenesH.ListarCompletadas)

		v1.GET("/pagos/estadisticas", middleware.RequireTipo(model.TipoPropietario), pagosH.Estadisticas)
		v1.POST("/pagos", personal, pagosH.Crear)
		v1.GET("/pagos", personal, pagosH.Listar)
		v1.GET("/pagos/:id", personal, pagosH.Obtener)
		v1.PUT("/pagos/:id", personal, pagosH.Actualizar)
		v1.DELETE("/pagos/:id", middleware.RequireTipo(model.TipoPropietario), pagosH.Cancelar)
		v1.POST("/pagos/:id/abonos", personal, pagosH.RegistrarAbono)

		pf := v1.Group("/pagofacil", personal)
		{
			pf.POST("/qr", pagoFacilH.GenerarQR)
			pf.POST("/estado", pagoFacilH.ConsultarEstado)
		}
	}

	// Swagger UI — only enabled outside production
	if cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r, pagoSvc, reciboWorker
}
