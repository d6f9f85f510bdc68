package xhttp

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"github.com/educhain/reward-service/errcode"
)

type Response struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// OkJson writes the success envelope.
func OkJson(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code: errcode.CodeOK,
		Msg:  "success",
		Data: data,
	})
}

// Error writes the failure envelope. *errcode.Err values keep their code;
// anything else is flattened to the generic internal code.
func Error(c *gin.Context, err error) {
	var ec *errcode.Err
	if !errors.As(err, &ec) {
		ec = errcode.NewErr(errcode.CodeInternal, err.Error())
	}

	status := http.StatusInternalServerError
	if errcode.IsClientFault(ec.Code) {
		status = http.StatusBadRequest
	}
	c.JSON(status, Response{
		Code: ec.Code,
		Msg:  ec.Msg,
	})
}
