package util

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Response 统一返回结构里的 data 使用 map
type Response map[string]interface{}

// OK 统一成功返回
func OK(c *gin.Context, data Response) {
	OKMsg(c, "操作成功", data)
}

// OKMsg 成功返回，附带自定义提示
func OKMsg(c *gin.Context, msg string, data Response) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"code":    200,
		"message": msg,
		"data":    data,
	})
}

// Error 统一错误返回
func Error(c *gin.Context, httpStatus int, code int, msg string) {
	c.JSON(httpStatus, gin.H{
		"success": false,
		"code":    code,
		"message": msg,
		"data":    nil,
	})
}

// Fail 按 AppError 渲染错误响应，非 AppError 一律 500。
func Fail(c *gin.Context, err error) {
	ae := AsAppError(err)
	var data interface{}
	if len(ae.Data) > 0 {
		data = ae.Data
	}
	c.JSON(ae.HTTPStatus, gin.H{
		"success": false,
		"code":    ae.Code,
		"message": ae.Message,
		"data":    data,
	})
}
