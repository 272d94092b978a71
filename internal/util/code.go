package util

// 业务错误码，格式 AABBB：AA 为模块编号，BBB 为具体错误。
const (
	// 通用错误 (10xxx)
	CodeSystemError    = 10000
	CodeInvalidRequest = 10001
	CodeUnauthorized   = 10002
	CodeForbidden      = 10003
	CodeNotFound       = 10004
	CodeDBError        = 10005
	CodeInvalidInput   = 10006
	CodeRateLimited    = 10007

	// 认证模块错误 (20xxx)
	CodeLoginFailed      = 20001
	CodeUserNotFound     = 20002
	CodeInvalidPassword  = 20003
	CodeEmailNotVerified = 20004
	CodeUserExists       = 20005
	CodeStudentIDExists  = 20006
	CodeEmailExists      = 20007
	CodeAuth0Error       = 20009
	CodeTokenExpired     = 20010
	CodeTokenInvalid     = 20011

	// 用户模块错误 (30xxx)
	CodeUserUpdateFailed = 30002
	CodeProfileNotFound  = 30003

	// 学习模块错误 (40xxx)
	CodeCourseNotFound = 40001
	CodeNoteNotFound   = 40002
	CodePostNotFound   = 40003
)

var codeMessages = map[int]string{
	CodeSystemError:    "系统错误，请稍后重试",
	CodeInvalidRequest: "无效的请求参数",
	CodeUnauthorized:   "请先登录后再访问",
	CodeForbidden:      "您没有权限执行此操作",
	CodeNotFound:       "请求的资源不存在",
	CodeDBError:        "数据库操作失败，请稍后重试",
	CodeInvalidInput:   "输入数据格式有误，请检查后重试",
	CodeRateLimited:    "请求过于频繁，请稍后再试",

	CodeLoginFailed:      "登录失败，请检查您的账号和密码",
	CodeUserNotFound:     "用户不存在，请先注册",
	CodeInvalidPassword:  "密码错误，请重新输入",
	CodeEmailNotVerified: "邮箱尚未验证，请查收验证邮件",
	CodeUserExists:       "用户已存在，请直接登录",
	CodeStudentIDExists:  "该学号已被注册，请使用其他学号",
	CodeEmailExists:      "该邮箱已注册，请直接登录或找回密码",
	CodeAuth0Error:       "认证服务暂时不可用，请稍后再试",
	CodeTokenExpired:     "登录已过期，请重新登录",
	CodeTokenInvalid:     "无效的登录凭证，请重新登录",

	CodeUserUpdateFailed: "更新用户信息失败",
	CodeProfileNotFound:  "用户资料不存在",

	CodeCourseNotFound: "课程不存在",
	CodeNoteNotFound:   "笔记不存在",
	CodePostNotFound:   "帖子不存在",
}

// CodeMessage 返回错误码对应的默认提示文案。
func CodeMessage(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return "未知错误"
}
