package rest

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/vladislavdragonenkov/shop/internal/domain"
)

const defaultPageSize = 20

func (s *Server) listOrders(c echo.Context) error {
	pageParam, sizeParam := c.QueryParam("page"), c.QueryParam("size")
	if pageParam == "" && sizeParam == "" {
		orders, err := s.orders.GetAllOrders(c.Request().Context())
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, orders)
	}

	page, err := intQuery(pageParam, "page", 0)
	if err != nil {
		return err
	}
	size, err := intQuery(sizeParam, "size", defaultPageSize)
	if err != nil {
		return err
	}

	result, err := s.orders.GetOrdersPage(c.Request().Context(), page, size)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) getOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	order, err := s.orders.GetOrderByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, order)
}

func (s *Server) getOrderProducts(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	products, err := s.orders.GetProductListByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

func (s *Server) createOrder(c echo.Context) error {
	var order domain.Order
	if err := c.Bind(&order); err != nil {
		return err
	}

	created, err := s.orders.CreateOrder(c.Request().Context(), order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func (s *Server) updateOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	var order domain.Order
	if err := c.Bind(&order); err != nil {
		return err
	}

	updated, err := s.orders.UpdateOrder(c.Request().Context(), id, order)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, updated)
}

func (s *Server) deleteOrder(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	if err := s.orders.DeleteOrder(c.Request().Context(), id); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) listProducts(c echo.Context) error {
	products, err := s.products.GetAllProducts(c.Request().Context())
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, products)
}

func (s *Server) getProduct(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}

	product, err := s.products.GetProductByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, product)
}

func (s *Server) createProduct(c echo.Context) error {
	var product domain.Product
	if err := c.Bind(&product); err != nil {
		return err
	}

	created, err := s.products.CreateProduct(c.Request().Context(), product)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, created)
}

func pathID(c echo.Context) (int64, error) {
	raw := c.Param("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: id %q is not a number", domain.ErrInvalidArgument, raw)
	}
	return id, nil
}

func intQuery(raw, name string, fallback int) (int, error) {
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q is not a number", domain.ErrInvalidArgument, name, raw)
	}
	return value, nil
}
