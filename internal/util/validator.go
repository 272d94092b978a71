package util

import (
	"fmt"
	"regexp"
	"strings"
)

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateEmail 验证邮箱格式
func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is empty")
	}
	if !emailRe.MatchString(email) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidatePassword 验证密码长度（不少于 8 位，密码强度由 Auth0 再做一层校验）
func ValidatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password too short, need at least 8 characters")
	}
	if len(password) > 64 {
		return fmt.Errorf("password too long, max 64 characters")
	}
	return nil
}

// ValidateName 验证姓名（不能为空且长度合理）
func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is empty")
	}
	if len(name) > 50 {
		return fmt.Errorf("name too long, max 50 characters")
	}
	return nil
}

// ValidateStudentID 验证学号（纯数字，4-20 位）
func ValidateStudentID(studentID string) error {
	if studentID == "" {
		return fmt.Errorf("student id is empty")
	}
	if ok, _ := regexp.MatchString(`^[0-9]{4,20}$`, studentID); !ok {
		return fmt.Errorf("invalid student id: %s", studentID)
	}
	return nil
}
