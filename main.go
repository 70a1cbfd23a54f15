// Package main lending library API.
//
// @title           Lending Library API
// @version         1.0
// @description     book catalog and checkout/return service.
// @BasePath        /
// @schemes         http
package main

import (
	"context"
	"log/slog"
	"os"

	"librarylend/app/echoServer"
	catalogctrl "librarylend/app/echoServer/controller/catalog"
	lendingctrl "librarylend/app/echoServer/controller/lending"
	"librarylend/config"
	bookrepo "librarylend/repository/book"
	patronrepo "librarylend/repository/patron"
	catalogsvc "librarylend/service/catalog"
	lendingsvc "librarylend/service/lending"
	"librarylend/util/database"
	"librarylend/util/validation"

	"github.com/labstack/echo/v4"
	echoSwagger "github.com/swaggo/echo-swagger"
)

func main() {

	cfg := config.Load()
	ctx := context.Background()

	// logger
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	// DB
	db, err := database.New(ctx, cfg.MongoURL, cfg.MongoDB)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer db.Close(context.Background())

	// repos
	br := bookrepo.New(db.Database)
	pr := patronrepo.New(db.Database)
	if err := br.EnsureIndexes(ctx); err != nil {
		log.Error("book indexes failed", "err", err)
		os.Exit(1)
	}
	if err := pr.EnsureIndexes(ctx); err != nil {
		log.Error("patron indexes failed", "err", err)
		os.Exit(1)
	}

	// services
	v := validation.New()
	cs := catalogsvc.New(br, v)
	ls := lendingsvc.New(br, pr)

	// controllers
	catalogC := &catalogctrl.Controller{Svc: cs, Log: log}
	lendingC := &lendingctrl.Controller{Svc: ls, Log: log}

	// echo
	e := echo.New()
	echoServer.RegisterMiddlewares(e)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(200, map[string]any{
			"status":  "ok",
			"message": "Service is healthy and connected",
		})
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	echoServer.Register(e, echoServer.C{
		Catalog: catalogC,
		Lending: lendingC,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Port
	}
	if port == "" {
		port = "8080"
	}

	slog.Info("starting server", "port", port)

	e.Logger.Fatal(e.Start(":" + port))
}
