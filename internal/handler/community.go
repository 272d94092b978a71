package handler

import (
	"net/http"

	"wisdom-campus/internal/middleware"
	"wisdom-campus/internal/models"
	"wisdom-campus/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CommunityHandler 社区帖子接口
type CommunityHandler struct {
	DB *gorm.DB
}

func NewCommunityHandler(db *gorm.DB) *CommunityHandler {
	return &CommunityHandler{DB: db}
}

type createPostReq struct {
	Title   string `json:"title" binding:"required,max=100"`
	Content string `json:"content" binding:"required"`
}

// ListPosts GET /api/v1/community/posts
func (h *CommunityHandler) ListPosts(c *gin.Context) {
	var posts []models.Post
	if err := h.DB.Order("created_at desc").Limit(100).Find(&posts).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询帖子失败")
		return
	}
	util.OK(c, util.Response{"posts": posts, "total": len(posts)})
}

// CreatePost POST /api/v1/community/posts
func (h *CommunityHandler) CreatePost(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req createPostReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	post := models.Post{
		UserID:  user.ID,
		Title:   req.Title,
		Content: req.Content,
	}
	if err := h.DB.Create(&post).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "发布失败")
		return
	}
	util.OKMsg(c, "发布成功", util.Response{"post": post})
}
