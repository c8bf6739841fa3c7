package api

import (
	"fmt"
	"io"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"

	"github.com/ougirez/aedsync/internal/pkg/constants"
	"github.com/ougirez/aedsync/internal/pkg/utils"
)

type jsonSerializer struct{}

// NewJSONSerializer makes echo read and write JSON through sonic.
func NewJSONSerializer() echo.JSONSerializer {
	return jsonSerializer{}
}

func (jsonSerializer) Serialize(c echo.Context, i interface{}, indent string) error {
	var (
		data []byte
		err  error
	)
	if indent != "" {
		data, err = utils.JSON.MarshalIndent(i, "", indent)
	} else {
		data, err = utils.JSON.Marshal(i)
	}
	if err != nil {
		return err
	}

	_, err = c.Response().Write(data)
	return err
}

func (jsonSerializer) Deserialize(c echo.Context, i interface{}) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return err
	}
	return utils.JSON.Unmarshal(body, i)
}

type binder struct {
	echo.DefaultBinder
}

func NewBinder() echo.Binder {
	return &binder{}
}

func (b *binder) Bind(i interface{}, c echo.Context) error {
	if err := b.DefaultBinder.Bind(i, c); err != nil {
		return fmt.Errorf("%w: %s", constants.ErrInvalidPayload, err.Error())
	}
	return nil
}

type requestValidator struct {
	v *validator.Validate
}

func NewValidator() echo.Validator {
	return &requestValidator{v: utils.Validator()}
}

func (rv *requestValidator) Validate(i interface{}) error {
	if err := rv.v.Struct(i); err != nil {
		return fmt.Errorf("%w: %s", constants.ErrInvalidPayload, err.Error())
	}
	return nil
}
