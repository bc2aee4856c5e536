package server

import (
	"log/slog"

	"app/internal/config"
	"app/internal/handler"
	"app/internal/middleware"
	"app/internal/repository"

	"github.com/labstack/echo/v4"
)

// 各ハンドラをまとめて受け取る
type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	Cart         *handler.CartHandler
	AdminProduct *handler.AdminProductHandler
}

// Newはechoを組み立ててルートを登録する。
func New(cfg config.Config, logger *slog.Logger, h Handlers, userRepo repository.UserRepository) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLogger(logger))

	h.Auth.RegisterRoutes(e)
	h.Product.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)

	return e
}
