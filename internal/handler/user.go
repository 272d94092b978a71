package handler

import (
	"errors"
	"net/http"

	"wisdom-campus/internal/middleware"
	"wisdom-campus/internal/models"
	"wisdom-campus/internal/store"
	"wisdom-campus/internal/util"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler 负责当前用户信息相关接口
type UserHandler struct {
	DB    *gorm.DB
	Users *store.UserStore
}

func NewUserHandler(db *gorm.DB, users *store.UserStore) *UserHandler {
	return &UserHandler{DB: db, Users: users}
}

// ---------- 请求结构 ----------

type updateMeReq struct {
	Name      *string `json:"name" binding:"omitempty,max=50"`
	Bio       *string `json:"bio" binding:"omitempty,max=500"`
	AvatarURL *string `json:"avatar_url" binding:"omitempty,max=255"`
	MajorID   *uint   `json:"major_id"`
	Grade     *string `json:"grade" binding:"omitempty,max=10"`
}

type updateProfileReq struct {
	LearningStyle *string `json:"learning_style" binding:"omitempty,oneof=visual auditory kinesthetic mixed"`
	PreferredTime *string `json:"preferred_time" binding:"omitempty,oneof=morning afternoon evening night"`
	Strengths     *string `json:"strengths"`
	Weaknesses    *string `json:"weaknesses"`
	StudyHabits   *string `json:"study_habits"`

	NotificationEmailEnabled *bool `json:"notification_email_enabled"`
	NotificationAppEnabled   *bool `json:"notification_app_enabled"`
}

// Me GET /api/v1/user/me
func (h *UserHandler) Me(c *gin.Context) {
	user := middleware.CurrentUser(c)
	data := user.PublicMap()
	if user.Profile != nil {
		data["profile"] = gin.H{
			"learning_style":             user.Profile.LearningStyle,
			"preferred_time":             user.Profile.PreferredTime,
			"strengths":                  user.Profile.Strengths,
			"weaknesses":                 user.Profile.Weaknesses,
			"study_habits":               user.Profile.StudyHabits,
			"notification_email_enabled": user.Profile.NotificationEmailEnabled,
			"notification_app_enabled":   user.Profile.NotificationAppEnabled,
		}
	}
	if user.Major != nil {
		data["major"] = gin.H{"id": user.Major.ID, "name": user.Major.Name, "college": user.Major.College}
	}
	util.OK(c, data)
}

// UpdateMe PUT /api/v1/user/me
// 只更新请求里出现的字段。
func (h *UserHandler) UpdateMe(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req updateMeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		if err := util.ValidateName(*req.Name); err != nil {
			util.Error(c, http.StatusBadRequest, util.CodeInvalidInput, "姓名不能为空")
			return
		}
		updates["name"] = *req.Name
	}
	if req.Bio != nil {
		updates["bio"] = *req.Bio
	}
	if req.AvatarURL != nil {
		updates["avatar_url"] = *req.AvatarURL
	}
	if req.MajorID != nil {
		// 专业必须存在
		var major models.Major
		if err := h.DB.First(&major, *req.MajorID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				util.Error(c, http.StatusBadRequest, util.CodeInvalidInput, "指定的专业不存在")
				return
			}
			util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询专业失败")
			return
		}
		updates["major_id"] = *req.MajorID
	}
	if req.Grade != nil {
		updates["grade"] = *req.Grade
	}

	if len(updates) > 0 {
		if err := h.DB.Model(user).Updates(updates).Error; err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeUserUpdateFailed, "更新用户信息失败")
			return
		}
	}

	// 读回完整记录（带画像和专业）
	fresh, err := h.Users.FindByID(user.ID)
	if err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询用户失败")
		return
	}
	util.OKMsg(c, "更新成功", fresh.PublicMap())
}

// UpdateProfile PUT /api/v1/user/me/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	user := middleware.CurrentUser(c)

	var req updateProfileReq
	if err := c.ShouldBindJSON(&req); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidRequest, "请求参数有误")
		return
	}

	updates := map[string]interface{}{}
	if req.LearningStyle != nil {
		updates["learning_style"] = *req.LearningStyle
	}
	if req.PreferredTime != nil {
		updates["preferred_time"] = *req.PreferredTime
	}
	if req.Strengths != nil {
		updates["strengths"] = *req.Strengths
	}
	if req.Weaknesses != nil {
		updates["weaknesses"] = *req.Weaknesses
	}
	if req.StudyHabits != nil {
		updates["study_habits"] = *req.StudyHabits
	}
	if req.NotificationEmailEnabled != nil {
		updates["notification_email_enabled"] = *req.NotificationEmailEnabled
	}
	if req.NotificationAppEnabled != nil {
		updates["notification_app_enabled"] = *req.NotificationAppEnabled
	}

	if len(updates) > 0 {
		err := h.DB.Model(&models.UserProfile{}).
			Where("user_id = ?", user.ID).
			Updates(updates).Error
		if err != nil {
			util.Error(c, http.StatusInternalServerError, util.CodeUserUpdateFailed, "更新用户资料失败")
			return
		}
	}

	var profile models.UserProfile
	if err := h.DB.Where("user_id = ?", user.ID).First(&profile).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeProfileNotFound, "用户资料不存在")
		return
	}
	util.OKMsg(c, "更新成功", util.Response{
		"learning_style":             profile.LearningStyle,
		"preferred_time":             profile.PreferredTime,
		"strengths":                  profile.Strengths,
		"weaknesses":                 profile.Weaknesses,
		"study_habits":               profile.StudyHabits,
		"notification_email_enabled": profile.NotificationEmailEnabled,
		"notification_app_enabled":   profile.NotificationAppEnabled,
	})
}

// Check GET /api/v1/user/check?student_id=
// 注册表单实时查学号是否已被占用。
func (h *UserHandler) Check(c *gin.Context) {
	studentID := c.Query("student_id")
	if err := util.ValidateStudentID(studentID); err != nil {
		util.Error(c, http.StatusBadRequest, util.CodeInvalidInput, "学号格式不正确")
		return
	}

	_, err := h.Users.FindByStudentID(studentID)
	switch {
	case err == nil:
		util.OK(c, util.Response{"exists": true})
	case errors.Is(err, store.ErrNotFound):
		util.OK(c, util.Response{"exists": false})
	default:
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询失败")
	}
}

// ListMajors GET /api/v1/majors
// 注册表单用的专业列表，无需登录。
func (h *UserHandler) ListMajors(c *gin.Context) {
	var majors []models.Major
	if err := h.DB.Order("id").Find(&majors).Error; err != nil {
		util.Error(c, http.StatusInternalServerError, util.CodeDBError, "查询专业列表失败")
		return
	}
	util.OK(c, util.Response{"majors": majors, "total": len(majors)})
}
