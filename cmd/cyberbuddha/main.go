package main

import (
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/dongruixiao/cyberbuddha/config"
	"github.com/dongruixiao/cyberbuddha/facilitator"
	"github.com/dongruixiao/cyberbuddha/logger"
	"github.com/dongruixiao/cyberbuddha/metrics"
	"github.com/dongruixiao/cyberbuddha/server"
	"github.com/dongruixiao/cyberbuddha/store"
	"github.com/dongruixiao/cyberbuddha/types"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("invalid configuration: ", err)
	}

	zl := logger.NewZapLogger(cfg.LogLevel)
	if syncer, ok := zl.(interface{ Sync() error }); ok {
		defer syncer.Sync()
	}

	ledger, err := store.Open(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal("failed to open ledger: ", err)
	}

	facilitatorOpts := []facilitator.Option{facilitator.WithLogger(zl)}
	if cfg.FacilitatorAuth != "" {
		facilitatorOpts = append(facilitatorOpts, facilitator.WithAuthorization(cfg.FacilitatorAuth))
	}
	fac := facilitator.New(cfg.FacilitatorURL, facilitatorOpts...)

	recorder := metrics.NewPrometheusRecorder(prometheus.DefaultRegisterer)

	api := server.New(server.Config{
		Recipient:   cfg.Address,
		Network:     cfg.Network,
		ResourceURL: cfg.ResourceURL,
	}, ledger, fac,
		server.WithLogger(zl),
		server.WithMetrics(recorder),
	)

	app := fiber.New(fiber.Config{AppName: "cyberbuddha"})
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowHeaders:  "Origin, Content-Type, Accept, " + types.PaymentHeader,
		ExposeHeaders: types.PaymentResponseHeader,
	}))

	app.Get("/metrics", func(c *fiber.Ctx) error {
		fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())(c.Context())
		return nil
	})

	api.Register(app)

	zl.Info("cyberbuddha listening", map[string]any{
		"port":    cfg.Port,
		"network": cfg.Network,
	})
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal(err)
	}
}
