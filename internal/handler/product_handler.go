package handler

import (
	"net/http"
	"strconv"

	"app/internal/usecase"

	"github.com/labstack/echo/v4"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

// ドメインエラーをHTTPステータスへ変換する（コアはHTTPを知らない）
func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if de, ok := usecase.AsDomainError(err); ok {
		switch de.Kind {
		case usecase.KindInvalidArgument:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: de.Message})
		case usecase.KindNotFound:
			return c.JSON(http.StatusNotFound, ErrorResponse{Error: de.Message})
		case usecase.KindInsufficientStock:
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: de.Message})
		case usecase.KindConflict:
			return c.JSON(http.StatusConflict, ErrorResponse{Error: de.Message})
		}
	}

	//500
	return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
}

// /products と /categories の公開API
type ProductHandler struct {
	uc *usecase.ProductUsecase
}

// DI
func NewProductHandler(uc *usecase.ProductUsecase) *ProductHandler {
	return &ProductHandler{uc: uc}
}

// 公開商品のルートを登録
func (h *ProductHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/products", h.list)
	e.GET("/products/:id", h.detail)
	e.GET("/categories", h.categories)
}

func (h *ProductHandler) list(c echo.Context) error {
	// page（default 1）
	page := 1
	if v := c.QueryParam("page"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid page"})
		}
		page = p
	}

	// limit（default 10）
	limit := 10
	if v := c.QueryParam("limit"); v != "" {
		l, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
		}
		limit = l
	}

	var minPrice *int64
	if v := c.QueryParam("min_price"); v != "" {
		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid min_price"})
		}
		minPrice = &x
	}

	var maxPrice *int64
	if v := c.QueryParam("max_price"); v != "" {
		x, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid max_price"})
		}
		maxPrice = &x
	}

	out, err := h.uc.ListProducts(c.Request().Context(), usecase.ListProductsInput{
		Page:      page,
		Limit:     limit,
		Category:  c.QueryParam("category"),
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		Brand:     c.QueryParam("brand"),
		Search:    c.QueryParam("search"),
		InStock:   c.QueryParam("in_stock") == "true",
		SortBy:    c.QueryParam("sort_by"),
		SortOrder: c.QueryParam("sort_order"),
	})
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, out)
}

func (h *ProductHandler) detail(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid id"})
	}

	p, err := h.uc.GetProduct(c.Request().Context(), id)
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, p)
}

func (h *ProductHandler) categories(c echo.Context) error {
	categories, err := h.uc.ListCategories(c.Request().Context())
	if err != nil {
		return writeError(c, err)
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"categories": categories,
	})
}
