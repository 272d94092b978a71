package handler

import (
	"errors"
	"net/http"
	"strconv"

	"wisdom-campus/internal/middleware"
	"wisdom-campus/internal/models"
	"wisdom-campus/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// LearningHandler 课程和笔记接口
type LearningHandler struct {
	DB *gorm.DB
}

func NewLearningHandler(db *gorm.DB) *LearningHandler {
	return &LearningHandler{DB: db}
}

type createCourseReq struct {
	Name     string  `json:"name" binding:"required,max=100"`
	Code     string  `json:"code" binding:"required,max=20"`
	Credit   float64 `json:"credit"`
	Semester string  `json:"semester" binding:"max=20"`
}

type noteReq struct {
	Title     string `json:"title" binding:"required,max=100"`
	Content   string `json:"content"`
	Category  string `json:"category" binding:"max=50"`
	IsStarred bool   `json:"is_starred"`
}

// ListCourses GET /api/v1/learning/courses
func (h *LearningHandler) ListCourses(c *gin.Context) {
	var courses []models.Course
	if err := h.DB.Order("id").Find(&courses).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询课程失败")
		return
	}
	util.OK(c, util.Response{"courses": courses, "total": len(courses)})
}

// CreateCourse POST /api/v1/learning/courses
func (h *LearningHandler) CreateCourse(c *gin.Context) {
	var req createCourseReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	course := models.Course{
		Name:     req.Name,
		Code:     req.Code,
		Credit:   req.Credit,
		Semester: req.Semester,
	}
	if err := h.DB.Create(&course).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "创建课程失败")
		return
	}
	util.OKMsg(c, "创建成功", util.Response{"course": course})
}

// ListNotes GET /api/v1/notes（只返回当前用户的笔记）
func (h *LearningHandler) ListNotes(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var notes []models.Note
	if err := h.DB.Where("user_id = ?", user.ID).Order("updated_at desc").Find(&notes).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询笔记失败")
		return
	}
	util.OK(c, util.Response{"notes": notes, "total": len(notes)})
}

// CreateNote POST /api/v1/notes
func (h *LearningHandler) CreateNote(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	note := models.Note{
		UserID:    user.ID,
		Title:     req.Title,
		Content:   req.Content,
		Category:  req.Category,
		IsStarred: req.IsStarred,
	}
	if err := h.DB.Create(&note).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "创建笔记失败")
		return
	}
	util.OKMsg(c, "创建成功", util.Response{"note": note})
}

// UpdateNote PUT /api/v1/notes/:id
func (h *LearningHandler) UpdateNote(c *gin.Context) {
	user := middleware.CurrentUser(c)

	note, ok := h.findOwnNote(c, user.ID)
	if !ok {
		return
	}

	var req noteReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	note.Title = req.Title
	note.Content = req.Content
	note.Category = req.Category
	note.IsStarred = req.IsStarred
	if err := h.DB.Save(note).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "更新笔记失败")
		return
	}
	util.OKMsg(c, "更新成功", util.Response{"note": note})
}

// DeleteNote DELETE /api/v1/notes/:id
func (h *LearningHandler) DeleteNote(c *gin.Context) {
	user := middleware.CurrentUser(c)

	note, ok := h.findOwnNote(c, user.ID)
	if !ok {
		return
	}
	if err := h.DB.Delete(note).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "删除笔记失败")
		return
	}
	util.OKMsg(c, "删除成功", nil)
}

// findOwnNote 取出当前用户的指定笔记，不存在或不属于自己时写好错误响应。
func (h *LearningHandler) findOwnNote(c *gin.Context, userID uint) (*models.Note, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "无效的笔记ID")
		return nil, false
	}

	var note models.Note
	err = h.DB.Where("id = ? AND user_id = ?", id, userID).First(&note).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			util.Error(c, http.StatusNotFound, util.CodeNoteNotFound, "笔记不存在")
		} else {
			util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询笔记失败")
		}
		return nil, false
	}
	return &note, true
}
