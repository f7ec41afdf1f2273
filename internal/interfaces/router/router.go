package router

import (
	brokersvc "dealdesk-backend/internal/application/brokers"
	dealsvc "dealdesk-backend/internal/application/deals"
	reconcilesvc "dealdesk-backend/internal/application/reconcile"
	"dealdesk-backend/internal/config"
	"dealdesk-backend/internal/infrastructure/database"
	boardhandler "dealdesk-backend/internal/interfaces/handlers/board"
	dealhandler "dealdesk-backend/internal/interfaces/handlers/deals"
	healthhandler "dealdesk-backend/internal/interfaces/handlers/health"
	reconcilehandler "dealdesk-backend/internal/interfaces/handlers/reconcile"
	"dealdesk-backend/internal/middleware"

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

func CreateApp(cfg *config.Config) (*fiber.App, *gorm.DB, *redis.Client, error) {
	app := fiber.New(fiber.Config{
		DisableStartupMessage:   true,
		ErrorHandler:            middleware.ErrorHandler,
		EnableTrustedProxyCheck: true,
	})

	app.Use(middleware.CORS(middleware.CORSConfig{
		AllowedSuffix: cfg.FrontendURLEndsWith,
		DevPassword:   cfg.DevPassword,
	}))

	sessionHandler, rdb, err := middleware.Session(middleware.SessionConfig{
		RedisURL:          cfg.RedisURL,
		AllowCrossSiteDev: cfg.AllowCrossSiteDev,
		IsProduction:      cfg.Env == "production",
	})
	if err != nil {
		return nil, nil, nil, err
	}
	app.Use(sessionHandler)
	app.Use(middleware.Tracing())
	app.Use(middleware.RouteLogger())

	hh := &healthhandler.Handlers{Rdb: rdb}
	app.Get("/health/json", hh.JSON)

	var db *gorm.DB
	if cfg.DatabaseURL != "" {
		db, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, nil, err
		}
		hh.DB = &gormDBPinger{db: db}
	}

	deals := &dealsvc.Service{DB: db}
	brokers := &brokersvc.Service{DB: db}
	reconciler := &reconcilesvc.Service{Deals: deals, Rdb: rdb}

	dh := &dealhandler.Handlers{Service: deals, Brokers: brokers}
	bh := &boardhandler.Handlers{Service: deals, Brokers: brokers}
	rh := &reconcilehandler.Handlers{Service: reconciler}

	v1 := app.Group("/api/v1")
	v1.Get("/deals", dh.GetDeals)
	v1.Post("/deals/create-deal", dh.CreateDeal)
	v1.Put("/deals/edit-deal", dh.EditDeal)
	v1.Post("/deals/close-deal", dh.CloseDeal)
	v1.Post("/deals/cancel-deal", dh.CancelDeal)
	v1.Post("/deals/resolve-extension", dh.ResolveExtension)
	v1.Get("/deals/:deal_id", dh.GetDeal)
	v1.Delete("/deals/:deal_id", dh.DeleteDeal)

	v1.Get("/board", bh.GetBoard)
	v1.Post("/board/move-deal", bh.MoveDeal)

	v1.Post("/reconcile", rh.Run)

	return app, db, rdb, nil
}
