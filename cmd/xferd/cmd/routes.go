package cmd

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/materials-commons/tablexfer/pkg/config"
	"github.com/materials-commons/tablexfer/pkg/worker"
	"github.com/materials-commons/tablexfer/pkg/xferapi"
)

type RouteDependencies struct {
	e      *echo.Echo
	config config.Configer
	worker *worker.Worker
}

func setupRoutes(deps RouteDependencies) {
	deps.e.Use(middleware.Recover())
	deps.e.Use(middleware.BodyLimit(deps.config.GetKeyWithDefault("XFER_BODY_LIMIT", "64M")))
	g := deps.e.Group("/api")

	xferapi.RegisterLogRoutes(g, xferapi.NewLogController())
	xferapi.RegisterTransferRoutes(g, xferapi.NewTransferController(deps.worker))
}
