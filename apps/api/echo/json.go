package echoapi

import (
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

// goccyJSONSerializer encodes and decodes request/response bodies with goccy/go-json.
type goccyJSONSerializer struct{}

func (goccyJSONSerializer) Serialize(ctx echo.Context, i interface{}, indent string) error {
	enc := json.NewEncoder(ctx.Response())
	if indent != "" {
		enc.SetIndent("", indent)
	}
	return enc.Encode(i)
}

func (goccyJSONSerializer) Deserialize(ctx echo.Context, i interface{}) error {
	err := json.NewDecoder(ctx.Request().Body).Decode(i)
	switch e := err.(type) {
	case nil:
		return nil
	case *json.UnmarshalTypeError:
		return echo.NewHTTPError(
			http.StatusBadRequest,
			fmt.Sprintf("Unmarshal type error: expected=%v, got=%v, field=%v", e.Type, e.Value, e.Field),
		).SetInternal(err)
	case *json.SyntaxError:
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("Syntax error: offset=%v, error=%v", e.Offset, e.Error())).SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error()).SetInternal(err)
	}
}
