package service

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"wisdom-campus/internal/auth0"
	"wisdom-campus/internal/models"
	"wisdom-campus/internal/notify"
	"wisdom-campus/internal/store"
	"wisdom-campus/internal/token"
	"wisdom-campus/internal/util"
)

// AuthService 登录/注册的对账流程：远端身份 ↔ 本地镜像 ↔ 本地会话令牌。
// 所有历史上散落在各处的登录注册变体都收敛到这里。
type AuthService struct {
	provider auth0.Provider
	users    *store.UserStore
	tokens   *token.Issuer
	notifier *notify.Notifier

	// 未验证的注册记录超过这个时长视为废弃，可以删掉重建
	staleUnverified time.Duration

	now func() time.Time
}

// NewAuthService 构造函数。
func NewAuthService(provider auth0.Provider, users *store.UserStore, tokens *token.Issuer, notifier *notify.Notifier, staleUnverified time.Duration) *AuthService {
	if staleUnverified <= 0 {
		staleUnverified = 60 * time.Second
	}
	return &AuthService{
		provider:        provider,
		users:           users,
		tokens:          tokens,
		notifier:        notifier,
		staleUnverified: staleUnverified,
		now:             time.Now,
	}
}

// ---------- 登录 ----------

// LoginRequest 支持邮箱或学号二选一。
type LoginRequest struct {
	Email     string
	StudentID string
	Password  string
}

type LoginResult struct {
	Token        string
	RefreshToken string
	ExpiresIn    int64
	User         *models.User
}

// Login 登录对账：学号换邮箱 → 远端凭证交换 → 本地镜像查/建 →
// 同步验证状态 → 签发本地令牌。远端拒绝时不动任何本地状态。
func (s *AuthService) Login(ctx context.Context, req LoginRequest) (*LoginResult, error) {
	email := strings.TrimSpace(req.Email)
	if req.Password == "" {
		return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "密码不能为空")
	}

	// 学号登录：先在本地换出邮箱
	if email == "" && req.StudentID != "" {
		user, err := s.users.FindByStudentID(req.StudentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, util.NewAppErrorMsg(util.CodeUserNotFound, http.StatusNotFound, "该学号不存在，请先注册")
			}
			return nil, dbError(err)
		}
		email = user.Email
	}
	if email == "" {
		return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "邮箱和学号不能同时为空")
	}

	// 远端凭证交换，失败直接返回类型化结果，不创建任何本地状态
	sess, err := s.provider.ExchangeCredentials(ctx, email, req.Password)
	if err != nil {
		return nil, mapProviderError(err)
	}

	ui, err := s.provider.UserInfo(ctx, sess.AccessToken)
	if err != nil {
		return nil, mapProviderError(err)
	}

	user, err := s.findOrCreateMirror(email, req.StudentID, ui)
	if err != nil {
		return nil, err
	}

	// 同步验证状态镜像
	if _, err := s.users.SyncVerification(user, ui.EmailVerified); err != nil {
		log.Printf("auth: sync verification for %s failed: %v", user.Email, err)
	}
	if err := s.users.TouchLastActive(user); err != nil {
		log.Printf("auth: touch last active for %s failed: %v", user.Email, err)
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return nil, util.NewAppError(util.CodeSystemError, http.StatusInternalServerError)
	}
	refresh, err := s.tokens.IssueRefresh(user)
	if err != nil {
		return nil, util.NewAppError(util.CodeSystemError, http.StatusInternalServerError)
	}

	return &LoginResult{
		Token:        access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.tokens.AccessTTL().Seconds()),
		User:         user,
	}, nil
}

// findOrCreateMirror 按 Auth0 ID 找本地镜像，没有就补一条。
// 远端有身份而本地没有，多半是历史数据分叉，按远端为准补齐。
func (s *AuthService) findOrCreateMirror(email, studentID string, ui *auth0.UserInfo) (*models.User, error) {
	user, err := s.users.FindByAuth0ID(ui.Sub)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, dbError(err)
	}

	user, err = s.users.Create(store.CreateParams{
		Auth0ID:       ui.Sub,
		Email:         email,
		Name:          ui.Name,
		StudentID:     studentID,
		EmailVerified: ui.EmailVerified,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			// 并发创建或邮箱被占，读回已有记录
			if existing, ferr := s.users.FindByEmail(email); ferr == nil {
				return existing, nil
			}
			return nil, util.NewAppError(util.CodeUserExists, http.StatusConflict)
		}
		return nil, dbError(err)
	}
	log.Printf("auth: created local mirror for %s (%s)", email, ui.Sub)
	return user, nil
}

// RefreshAccess 用刷新令牌里的用户 ID 换新的访问令牌。
func (s *AuthService) RefreshAccess(userID uint) (string, int64, error) {
	user, err := s.users.FindByID(userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", 0, util.NewAppError(util.CodeUserNotFound, http.StatusNotFound)
		}
		return "", 0, dbError(err)
	}

	if err := s.users.TouchLastActive(user); err != nil {
		log.Printf("auth: touch last active for %s failed: %v", user.Email, err)
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return "", 0, util.NewAppError(util.CodeSystemError, http.StatusInternalServerError)
	}
	return access, int64(s.tokens.AccessTTL().Seconds()), nil
}

// ---------- 注册 ----------

type RegisterRequest struct {
	StudentID string
	Email     string
	Password  string
	Name      string
	MajorID   *uint
	Grade     string
}

type RegisterResult struct {
	UserID  uint
	Auth0ID string
	Email   string
	Message string
	// EmailSent 本次流程是否真的发出了验证邮件
	EmailSent bool
}

// Register 注册对账。远端/本地存在性和验证状态的组合逐一确定性处理，
// 远端创建成功但本地入库失败时做补偿删除。
func (s *AuthService) Register(ctx context.Context, req RegisterRequest) (*RegisterResult, error) {
	email := strings.TrimSpace(req.Email)
	name := strings.TrimSpace(req.Name)

	if err := util.ValidateEmail(email); err != nil {
		return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "邮箱格式不正确")
	}
	if err := util.ValidatePassword(req.Password); err != nil {
		return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "密码长度不能少于8位")
	}
	if err := util.ValidateName(name); err != nil {
		return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "姓名不能为空")
	}
	if req.StudentID != "" {
		if err := util.ValidateStudentID(req.StudentID); err != nil {
			return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "学号格式不正确")
		}
	}

	// 学号被其他邮箱占用直接拒绝
	if req.StudentID != "" {
		if existing, err := s.users.FindByStudentID(req.StudentID); err == nil {
			if existing.Email != email {
				return nil, util.NewAppError(util.CodeStudentIDExists, http.StatusConflict)
			}
		} else if !errors.Is(err, store.ErrNotFound) {
			return nil, dbError(err)
		}
	}

	// 本地已有记录的处理：已验证 → 拒绝；未验证且过期 → 删除重建；
	// 未验证且新鲜 → 补发验证邮件
	local, err := s.users.FindByEmail(email)
	switch {
	case err == nil && local.EmailVerified:
		return nil, util.NewAppError(util.CodeEmailExists, http.StatusConflict)
	case err == nil: // 本地存在但未验证
		if s.now().Sub(local.CreatedAt) > s.staleUnverified {
			log.Printf("auth: removing stale unverified registration for %s (created %s)", email, local.CreatedAt)
			if derr := s.users.Delete(local); derr != nil {
				return nil, dbError(derr)
			}
			// 继续走全新注册流程
		} else {
			return s.resendForPending(ctx, local, req.StudentID)
		}
	case !errors.Is(err, store.ErrNotFound):
		return nil, dbError(err)
	}

	// 远端存在性检查：远端和本地可能各自分叉，这里以远端状态定分支
	remote, err := s.provider.FindByEmail(ctx, email)
	if err != nil {
		return nil, mapProviderError(err)
	}

	meta := auth0.Metadata{
		StudentID: req.StudentID,
		Name:      name,
		MajorID:   req.MajorID,
		Grade:     req.Grade,
	}

	if remote == nil {
		return s.registerFresh(ctx, email, req.Password, name, req, meta)
	}
	return s.adoptRemote(ctx, remote, email, name, req)
}

// registerFresh 远端不存在：建远端 → 建本地 → 发验证邮件。
// 本地入库失败时补偿删除刚建的远端身份。
func (s *AuthService) registerFresh(ctx context.Context, email, password, name string, req RegisterRequest, meta auth0.Metadata) (*RegisterResult, error) {
	remote, err := s.provider.CreateUser(ctx, email, password, meta)
	if err != nil {
		if errors.Is(err, auth0.ErrConflict) {
			// 和 FindByEmail 之间有并发注册，按已存在处理
			return nil, util.NewAppError(util.CodeEmailExists, http.StatusConflict)
		}
		return nil, mapProviderError(err)
	}

	user, err := s.users.Create(store.CreateParams{
		Auth0ID:   remote.UserID,
		Email:     email,
		Name:      name,
		StudentID: req.StudentID,
		MajorID:   req.MajorID,
		Grade:     req.Grade,
	})
	if err != nil {
		// 补偿：删掉刚创建的远端身份，避免远端孤儿账号。
		// 补偿失败只记日志，不改变返回给调用方的结果。
		if cerr := s.provider.DeleteUser(ctx, remote.UserID); cerr != nil {
			log.Printf("auth: compensating delete of %s failed: %v", remote.UserID, cerr)
		}
		if errors.Is(err, store.ErrConflict) {
			return nil, util.NewAppError(util.CodeUserExists, http.StatusConflict)
		}
		return nil, dbError(err)
	}

	return s.finishWithVerification(ctx, user, "注册成功")
}

// adoptRemote 远端已有身份、本地没有：按远端验证状态落镜像。
func (s *AuthService) adoptRemote(ctx context.Context, remote *auth0.IdentityRecord, email, name string, req RegisterRequest) (*RegisterResult, error) {
	user, err := s.users.Create(store.CreateParams{
		Auth0ID:       remote.UserID,
		Email:         email,
		Name:          name,
		StudentID:     req.StudentID,
		MajorID:       req.MajorID,
		Grade:         req.Grade,
		EmailVerified: remote.EmailVerified,
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return nil, util.NewAppError(util.CodeUserExists, http.StatusConflict)
		}
		return nil, dbError(err)
	}

	if remote.EmailVerified {
		// 已验证的远端账号只需关联，不再发邮件
		return &RegisterResult{
			UserID:  user.ID,
			Auth0ID: user.Auth0ID,
			Email:   email,
			Message: "您的账号已成功关联学号，请使用邮箱和密码登录",
		}, nil
	}
	return s.finishWithVerification(ctx, user, "注册成功")
}

// resendForPending 本地有未过期的未验证记录：更新学号后补发验证邮件。
func (s *AuthService) resendForPending(ctx context.Context, local *models.User, studentID string) (*RegisterResult, error) {
	if studentID != "" && (local.StudentID == nil || *local.StudentID != studentID) {
		if err := s.users.UpdateStudentID(local, studentID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return nil, util.NewAppError(util.CodeStudentIDExists, http.StatusConflict)
			}
			return nil, dbError(err)
		}
		// 远端 metadata 同步是尽力而为，失败不阻塞注册
		meta := auth0.Metadata{StudentID: studentID, Name: local.Name, MajorID: local.MajorID, Grade: local.Grade}
		if err := s.provider.UpdateUserMetadata(ctx, local.Auth0ID, meta); err != nil {
			log.Printf("auth: sync metadata for %s failed: %v", local.Email, err)
		}
	}

	if err := s.notifier.Send(ctx, local.Email, local.Auth0ID); err != nil {
		var ce *notify.CooldownError
		if errors.As(err, &ce) {
			return nil, cooldownError(ce)
		}
		log.Printf("auth: resend verification for %s failed: %v", local.Email, err)
		return nil, util.NewAppErrorMsg(util.CodeEmailNotVerified, http.StatusConflict,
			"您的账号已注册但尚未验证邮箱，发送验证邮件失败，请稍后在登录页面请求重新发送")
	}

	return &RegisterResult{
		UserID:    local.ID,
		Auth0ID:   local.Auth0ID,
		Email:     local.Email,
		Message:   "验证邮件已发送，请查收邮箱完成注册",
		EmailSent: true,
	}, nil
}

// finishWithVerification 注册收尾：尽力发验证邮件，冷却或失败不影响注册结果。
func (s *AuthService) finishWithVerification(ctx context.Context, user *models.User, prefix string) (*RegisterResult, error) {
	result := &RegisterResult{
		UserID:  user.ID,
		Auth0ID: user.Auth0ID,
		Email:   user.Email,
	}

	err := s.notifier.Send(ctx, user.Email, user.Auth0ID)
	switch {
	case err == nil:
		result.Message = "验证邮件已发送，请查收邮箱完成注册"
		result.EmailSent = true
	default:
		var ce *notify.CooldownError
		if errors.As(err, &ce) {
			result.Message = prefix + "，但验证邮件发送过于频繁，请稍后在登录页面请求重新发送"
		} else {
			log.Printf("auth: send verification for %s failed: %v", user.Email, err)
			result.Message = prefix + "，但发送验证邮件失败，请稍后在登录页面请求重新发送"
		}
	}
	return result, nil
}

// ---------- 验证状态 ----------

// findByEmailOrAuth0ID 两个定位参数至少给一个。
func (s *AuthService) findByEmailOrAuth0ID(email, auth0ID string) (*models.User, error) {
	if email == "" && auth0ID == "" {
		return nil, util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "邮箱或Auth0 ID至少需要提供一个")
	}

	var user *models.User
	var err error
	if auth0ID != "" {
		user, err = s.users.FindByAuth0ID(auth0ID)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, dbError(err)
		}
	}
	if user == nil && email != "" {
		user, err = s.users.FindByEmail(email)
	}
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, util.NewAppError(util.CodeUserNotFound, http.StatusNotFound)
		}
		return nil, dbError(err)
	}
	return user, nil
}

// CheckVerification 查询邮箱验证状态。本地已验证直接返回；
// 否则查远端并同步镜像，状态翻转时恰好写一次库。
func (s *AuthService) CheckVerification(ctx context.Context, email, auth0ID string) (bool, error) {
	user, err := s.findByEmailOrAuth0ID(email, auth0ID)
	if err != nil {
		return false, err
	}

	if user.EmailVerified {
		return true, nil
	}

	remote, err := s.provider.GetUser(ctx, user.Auth0ID)
	if err != nil {
		if errors.Is(err, auth0.ErrNotFound) {
			return false, util.NewAppError(util.CodeUserNotFound, http.StatusNotFound)
		}
		return false, mapProviderError(err)
	}

	changed, err := s.users.SyncVerification(user, remote.EmailVerified)
	if err != nil {
		return false, dbError(err)
	}
	if changed {
		log.Printf("auth: verification status for %s changed to %v", user.Email, remote.EmailVerified)
	}
	return remote.EmailVerified, nil
}

// ResendVerification 补发验证邮件（登录页的"重新发送"按钮）。
// 已验证账号返回提示而不是错误。
func (s *AuthService) ResendVerification(ctx context.Context, email, auth0ID string) (string, error) {
	user, err := s.findByEmailOrAuth0ID(email, auth0ID)
	if err != nil {
		return "", err
	}

	if user.EmailVerified {
		return "邮箱已验证，无需重发验证邮件", nil
	}

	if err := s.notifier.Send(ctx, user.Email, user.Auth0ID); err != nil {
		var ce *notify.CooldownError
		if errors.As(err, &ce) {
			return "", cooldownError(ce)
		}
		return "", mapProviderError(err)
	}
	return "验证邮件已发送，请查收", nil
}

// ---------- 密码 ----------

// ForgotPassword 发送密码重置邮件。邮箱未注册时返回同样的提示，
// 不泄露邮箱是否存在，只在日志里留痕。
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (string, error) {
	const neutralMsg = "如果该邮箱已注册，您将收到密码重置邮件"

	if err := util.ValidateEmail(email); err != nil {
		return "", util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "邮箱格式不正确")
	}

	if _, err := s.users.FindByEmail(email); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Printf("auth: password reset requested for unknown email %s", email)
			return neutralMsg, nil
		}
		return "", dbError(err)
	}

	if err := s.provider.SendPasswordReset(ctx, email); err != nil {
		return "", mapProviderError(err)
	}
	return neutralMsg, nil
}

// ChangePassword 修改密码：先用旧密码换令牌确认身份，再设置新密码。
func (s *AuthService) ChangePassword(ctx context.Context, user *models.User, oldPassword, newPassword string) error {
	if err := util.ValidatePassword(newPassword); err != nil {
		return util.NewAppErrorMsg(util.CodeInvalidInput, http.StatusBadRequest, "新密码长度不能少于8位")
	}

	if _, err := s.provider.ExchangeCredentials(ctx, user.Email, oldPassword); err != nil {
		var ae *auth0.AuthError
		if errors.As(err, &ae) && ae.Kind == auth0.AuthWrongCredentials {
			return util.NewAppErrorMsg(util.CodeInvalidPassword, http.StatusUnauthorized, "原密码不正确")
		}
		// 未验证邮箱等其他拒绝原因按原样映射
		return mapProviderError(err)
	}

	if err := s.provider.SetPassword(ctx, user.Auth0ID, newPassword); err != nil {
		if errors.Is(err, auth0.ErrNotFound) {
			return util.NewAppError(util.CodeUserNotFound, http.StatusNotFound)
		}
		return mapProviderError(err)
	}
	log.Printf("auth: password changed for %s", user.Email)
	return nil
}

// CancelRegistration 取消注册：先删远端身份再删本地记录。
// 用户不存在视为成功（取消本来就是幂等操作）。
func (s *AuthService) CancelRegistration(ctx context.Context, email, auth0ID string) error {
	user, err := s.findByEmailOrAuth0ID(email, auth0ID)
	if err != nil {
		ae := util.AsAppError(err)
		if ae.Code == util.CodeUserNotFound {
			return nil
		}
		return err
	}

	if err := s.provider.DeleteUser(ctx, user.Auth0ID); err != nil {
		log.Printf("auth: delete remote identity %s failed: %v", user.Auth0ID, err)
		// 远端删不掉也继续删本地，留下的远端孤儿由人工清理
	}
	if err := s.users.Delete(user); err != nil {
		return dbError(err)
	}
	log.Printf("auth: cancelled registration for %s", user.Email)
	return nil
}

// RemoveUser 管理端删除用户：远端 + 本地。
func (s *AuthService) RemoveUser(ctx context.Context, user *models.User) error {
	if err := s.provider.DeleteUser(ctx, user.Auth0ID); err != nil {
		log.Printf("auth: delete remote identity %s failed: %v", user.Auth0ID, err)
	}
	if err := s.users.Delete(user); err != nil {
		return dbError(err)
	}
	return nil
}

// ---------- 错误映射 ----------

// mapProviderError 把 Identity Client 的类型化错误翻成带 HTTP 状态的业务错误。
func mapProviderError(err error) error {
	var ae *auth0.AuthError
	if errors.As(err, &ae) {
		switch ae.Kind {
		case auth0.AuthWrongCredentials:
			return util.NewAppErrorMsg(util.CodeInvalidPassword, http.StatusUnauthorized, "密码错误，请重试")
		case auth0.AuthEmailNotVerified:
			return util.NewAppErrorMsg(util.CodeEmailNotVerified, http.StatusUnauthorized, "邮箱未验证，请先验证邮箱")
		case auth0.AuthGrantNotEnabled:
			return util.NewAppErrorMsg(util.CodeAuth0Error, http.StatusBadGateway, "认证方式未启用，请联系系统管理员")
		default:
			return util.NewAppError(util.CodeLoginFailed, http.StatusUnauthorized)
		}
	}
	if errors.Is(err, auth0.ErrProviderUnavailable) {
		return util.NewAppErrorMsg(util.CodeAuth0Error, http.StatusServiceUnavailable, "无法连接到身份验证服务")
	}
	return util.NewAppError(util.CodeAuth0Error, http.StatusBadGateway)
}

func dbError(err error) error {
	log.Printf("auth: database error: %v", err)
	return util.NewAppError(util.CodeDBError, http.StatusInternalServerError)
}

func cooldownError(ce *notify.CooldownError) error {
	secs := int(ce.Remaining.Seconds())
	if secs < 1 {
		secs = 1
	}
	ae := util.NewAppErrorMsg(util.CodeRateLimited, http.StatusTooManyRequests,
		"验证邮件发送过于频繁，请稍后再试")
	ae.Data = map[string]interface{}{"cooldown_remaining": secs}
	return ae
}
