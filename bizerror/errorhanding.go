package bizerror

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mangaapi/common"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jinzhu/gorm"
	"github.com/sirupsen/logrus"
)

const CommonInternalServerError = "common.internal_server_error"

type errorMapping struct {
	target  error
	status  int
	code    string
	message string
}

var errorMappings = []errorMapping{
	{ErrUnauthenticated, http.StatusUnauthorized, "common.unauthenticated", "unauthenticated"},
	{ErrForbidden, http.StatusForbidden, "security.forbidden", "access forbidden"},
	{ErrInvalidPassword, http.StatusBadRequest, "security.invalid_password", "invalid password"},
	{ErrMalformedActor, http.StatusBadRequest, "dac.malformed_actor", "exactly one of user and group must be set"},
	{ErrUnknownTargetType, http.StatusBadRequest, "dac.unknown_target_type", "unknown target type"},
	{ErrUnknownPermission, http.StatusBadRequest, "dac.unknown_permission", "unknown permission"},
	{ErrUnknownProfile, http.StatusBadRequest, "profile.unknown_profile", "unknown profile"},
	{ErrNotFound, http.StatusNotFound, "common.record_not_found", "record not found"},
	{gorm.ErrRecordNotFound, http.StatusNotFound, "common.record_not_found", "record not found"},
}

func ErrorHandling() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handle(c)
		c.Next()
	}
}

func handle(c *gin.Context) {
	if ret := recover(); ret != nil {
		err, ok := ret.(error)
		if !ok {
			err = errors.New(fmt.Sprintf("%s", ret))
		}
		HandleError(c, err)
	} else {
		if err := c.Errors.Last(); err != nil {
			HandleError(c, err)
		}
	}
}

func HandleError(c *gin.Context, err error) {
	genericErr := err
	var ginErr *gin.Error
	if errors.As(err, &ginErr) {
		genericErr = ginErr.Err
	}

	var bizErr BizError
	if errors.As(genericErr, &bizErr) {
		respond := bizErr.Respond()
		logrus.Debugf("request %s %s rejected: %v", c.Request.Method, c.Request.URL.Path, err)
		c.AbortWithStatusJSON(respond.Status, &common.ErrorBody{Code: respond.Code, Message: respond.Message, Data: respond.Data})
		return
	}

	// bad request:  io.EOF (no body).
	if errors.Is(genericErr, io.EOF) {
		c.AbortWithStatusJSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.body_not_found", Message: "body not found"})
		return
	}
	// bad request: json syntax Error
	var syntaxErr *json.SyntaxError
	if errors.As(genericErr, &syntaxErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.invalid_body_format", Message: "invalid body format", Data: syntaxErr.Error()})
		return
	}
	// validation failed
	var validationErr validator.ValidationErrors
	if errors.As(genericErr, &validationErr) {
		c.AbortWithStatusJSON(http.StatusBadRequest, &common.ErrorBody{Code: "bad_request.validation_failed", Message: "validation failed", Data: validationErr.Error()})
		return
	}

	for _, m := range errorMappings {
		if errors.Is(genericErr, m.target) {
			c.AbortWithStatusJSON(m.status, &common.ErrorBody{Code: m.code, Message: m.message})
			return
		}
	}

	// storage and other unexpected failures are logged but never leaked to clients
	logrus.WithField("path", c.Request.URL.Path).WithField("method", c.Request.Method).Error(err)
	c.AbortWithStatusJSON(http.StatusInternalServerError, &common.ErrorBody{Code: CommonInternalServerError, Message: "internal server error"})
}
