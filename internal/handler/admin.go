package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"wisdom-campus/internal/service"
	"wisdom-campus/internal/store"
	"wisdom-campus/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"
)

// AdminHandler 负责用户管理接口，路由层已用 RequireAdmin 保护
type AdminHandler struct {
	Users    *store.UserStore
	Svc      *service.AuthService
	PageSize int
}

func NewAdminHandler(users *store.UserStore, svc *service.AuthService, pageSize int) *AdminHandler {
	if pageSize < 1 {
		pageSize = 20
	}
	return &AdminHandler{Users: users, Svc: svc, PageSize: pageSize}
}

// ListUsers GET /api/v1/admin/users?page=&size=
func (h *AdminHandler) ListUsers(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", strconv.Itoa(h.PageSize)))
	if size > 100 {
		size = 100
	}

	users, total, err := h.Users.ListUsers(page, size)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询用户列表失败")
		return
	}

	items := make([]map[string]interface{}, 0, len(users))
	for i := range users {
		m := users[i].PublicMap()
		m["status"] = users[i].Status
		m["created_at"] = users[i].CreatedAt
		m["last_active"] = users[i].LastActive
		items = append(items, m)
	}

	util.OK(c, util.Response{
		"users": items,
		"total": total,
		"page":  page,
		"size":  size,
	})
}

// ExportUsers GET /api/v1/admin/users/export
// 导出全量用户名册为 xlsx。
func (h *AdminHandler) ExportUsers(c *gin.Context) {
	users, _, err := h.Users.ListUsers(1, 10000)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询用户列表失败")
		return
	}

	f := excelize.NewFile()
	sheetName := "用户名册"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeSystemError, "创建工作表失败")
		return
	}
	f.SetActiveSheet(index)

	headers := []string{"ID", "学号", "姓名", "邮箱", "邮箱已验证", "专业", "年级", "状态", "注册时间"}
	for i, hd := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, hd)
	}

	for idx, u := range users {
		row := idx + 2

		studentID := ""
		if u.StudentID != nil {
			studentID = *u.StudentID
		}
		major := ""
		if u.Major != nil {
			major = u.Major.Name
		}
		verified := "否"
		if u.EmailVerified {
			verified = "是"
		}

		f.SetCellValue(sheetName, fmt.Sprintf("A%d", row), u.ID)
		f.SetCellValue(sheetName, fmt.Sprintf("B%d", row), studentID)
		f.SetCellValue(sheetName, fmt.Sprintf("C%d", row), u.Name)
		f.SetCellValue(sheetName, fmt.Sprintf("D%d", row), u.Email)
		f.SetCellValue(sheetName, fmt.Sprintf("E%d", row), verified)
		f.SetCellValue(sheetName, fmt.Sprintf("F%d", row), major)
		f.SetCellValue(sheetName, fmt.Sprintf("G%d", row), u.Grade)
		f.SetCellValue(sheetName, fmt.Sprintf("H%d", row), u.Status)
		f.SetCellValue(sheetName, fmt.Sprintf("I%d", row), u.CreatedAt.Format("2006-01-02 15:04:05"))
	}

	f.SetColWidth(sheetName, "A", "A", 8)
	f.SetColWidth(sheetName, "B", "B", 14)
	f.SetColWidth(sheetName, "C", "C", 12)
	f.SetColWidth(sheetName, "D", "D", 28)
	f.SetColWidth(sheetName, "E", "E", 10)
	f.SetColWidth(sheetName, "F", "F", 18)
	f.SetColWidth(sheetName, "G", "I", 12)

	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"users_%s.xlsx\"",
		time.Now().Format("20060102")))

	if err := f.Write(c.Writer); err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeSystemError, "导出失败")
	}
}

// DeleteUser DELETE /api/v1/admin/users/:id
// 同时删除远端身份和本地记录。
func (h *AdminHandler) DeleteUser(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "无效的用户ID")
		return
	}

	user, err := h.Users.FindByID(uint(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeUserNotFound, "用户不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询用户失败")
		}
		return
	}

	if err := h.Svc.RemoveUser(c.Request.Context(), user); err != nil {
		util.Fail(c, err)
		return
	}
	util.OKMsg(c, "用户已删除", nil)
}
