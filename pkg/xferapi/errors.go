package xferapi

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/labstack/echo/v4"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func errorResponse(ctx echo.Context, code int, message string) error {
	return ctx.JSON(code, map[string]string{"error": message})
}
