package router

import (
	authsvc "lumen-backend/internal/application/auth"
	ledgersvc "lumen-backend/internal/application/ledger"
	reconcilesvc "lumen-backend/internal/application/reconcile"
	renewalsvc "lumen-backend/internal/application/renewal"
	settingssvc "lumen-backend/internal/application/settings"
	wishsvc "lumen-backend/internal/application/wishes"
	"lumen-backend/internal/config"
	"lumen-backend/internal/infrastructure/database"
	accounthandler "lumen-backend/internal/interfaces/handlers/accounts"
	adminhandler "lumen-backend/internal/interfaces/handlers/admin"
	authhandler "lumen-backend/internal/interfaces/handlers/auth"
	healthhandler "lumen-backend/internal/interfaces/handlers/health"
	ledgerhandler "lumen-backend/internal/interfaces/handlers/ledger"
	wishhandler "lumen-backend/internal/interfaces/handlers/wishes"
	"lumen-backend/internal/lumen"
	"lumen-backend/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type gormDBPinger struct {
	db *gorm.DB
}

func (g *gormDBPinger) Ping() error {
	if g == nil || g.db == nil {
		return nil
	}
	sqlDB, err := g.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// CreateApp builds the Fiber app with all global middleware, the service
// graph and route registration. The reconciler is returned for the caller
// to start with its own lifecycle context.
func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, *reconcilesvc.Service, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionCfg := middleware.SessionConfig{
		Secret:            cfg.SessionSecret,
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.Env != "production",
		IsProduction:      cfg.Env == "production",
	}
	sessionHandler, rdb, err := middleware.Session(sessionCfg)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.HealthMarker(rdb))
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Rdb: rdb}
	app.Get("/health/json", hh.JSON)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, nil, err
		}
		if err := database.AutoMigrate(db); err != nil {
			return nil, nil, nil, nil, err
		}
		if err := database.SeedSettings(db, cfg.RebirthAmount, cfg.VesselCapacity); err != nil {
			return nil, nil, nil, nil, err
		}
		hh.DB = &gormDBPinger{db: db}
	}

	var reconciler *reconcilesvc.Service

	// db may be nil when DATABASE_URL is not set (e.g. middleware tests);
	// only health and auth-rejection behavior exist in that mode.
	if db != nil && rdb != nil {
		rate := cfg.RatePerHourMicros()

		ledgerService := &ledgersvc.Service{
			DB:                    db,
			RatePerHourMicros:     rate,
			RebirthFallbackMicros: lumen.UnitsToMicros(cfg.RebirthAmount),
			CycleLengthDays:       cfg.CycleLengthDays,
		}
		wishService := &wishsvc.Service{
			DB:                     db,
			RatePerHourMicros:      rate,
			CapacityFallbackMicros: lumen.UnitsToMicros(cfg.VesselCapacity),
		}
		renewalService := &renewalsvc.Service{
			DB:                    db,
			RatePerHourMicros:     rate,
			RebirthFallbackMicros: lumen.UnitsToMicros(cfg.RebirthAmount),
		}
		settingsService := &settingssvc.Service{DB: db}
		reconciler = &reconcilesvc.Service{
			DB:                db,
			RatePerHourMicros: rate,
			ToleranceMicros:   lumen.UnitsToMicros(cfg.ReconcileTolerance),
		}

		authService := &authsvc.Service{DB: db, Ledger: ledgerService}
		ah := &authhandler.Handlers{Service: authService, Rdb: rdb, Config: sessionCfg}
		authGroup := app.Group("/api/v1/auth")
		authGroup.Post("/register", ah.Register)
		authGroup.Post("/login", ah.Login)
		authGroup.Get("/me", ah.Me)
		authGroup.Delete("/logout", ah.Logout)

		acctHandlers := &accounthandler.Handlers{Ledger: ledgerService, Renewal: renewalService}
		acctGroup := app.Group("/api/v1/accounts", middleware.RequireAuth())
		acctGroup.Get("/balance", acctHandlers.Balance)
		acctGroup.Post("/pay", acctHandlers.Pay)
		acctGroup.Post("/renew", acctHandlers.Renew)

		wh := &wishhandler.Handlers{Service: wishService}
		wishGroup := app.Group("/api/v1/wishes", middleware.RequireAuth())
		wishGroup.Post("/create-wish", wh.CreateWish)
		wishGroup.Get("/get-wishes", wh.GetWishes)
		wishGroup.Get("/get-wish/:wish_id", wh.GetWish)
		wishGroup.Post("/assign", wh.Assign)
		wishGroup.Post("/report-completion", wh.ReportCompletion)
		wishGroup.Post("/fulfill", wh.Fulfill)
		wishGroup.Post("/cancel", wh.Cancel)

		lh := &ledgerhandler.Handlers{Service: ledgerService}
		ledgerGroup := app.Group("/api/v1/ledger", middleware.RequireAuth())
		ledgerGroup.Get("/get-entries", lh.GetEntries)

		adm := &adminhandler.Handlers{
			Settings:  settingsService,
			Reconcile: reconciler,
			AdminKey:  cfg.AdminKey,
		}
		adminGroup := app.Group("/api/v1/admin")
		adminGroup.Get("/settings", adm.GetSettings)
		adminGroup.Patch("/settings", adm.UpdateSetting)
		adminGroup.Post("/reconcile", adm.RunReconcile)
	}

	return app, db, rdb, reconciler, nil
}
