package echoServer

import (
	"librarylend/app/echoServer/controller/catalog"
	"librarylend/app/echoServer/controller/lending"

	"github.com/labstack/echo/v4"
)

type C struct {
	Catalog *catalog.Controller
	Lending *lending.Controller
}

func Register(e *echo.Echo, c C) {
	v1 := e.Group("/v1")

	// Catalog
	v1.POST("/books", c.Catalog.Create)
	v1.GET("/books", c.Catalog.Find)

	// Lending
	v1.POST("/checkouts", c.Lending.Checkout)
	v1.POST("/returns", c.Lending.Return)

	// Administrative reset
	v1.DELETE("/all", c.Lending.Clear)
}
