package util

import "testing"

// TestValidateEmail_Valid 测试有效邮箱
func TestValidateEmail_Valid(t *testing.T) {
	testCases := []string{
		"a@x.edu",
		"student.2021@campus.edu.cn",
		"name+tag@example.com",
	}

	for _, email := range testCases {
		if err := ValidateEmail(email); err != nil {
			t.Errorf("ValidateEmail(%q) error = %v, want nil", email, err)
		}
	}
}

// TestValidateEmail_Invalid 测试无效邮箱（异常）
func TestValidateEmail_Invalid(t *testing.T) {
	testCases := []string{
		"",
		"plainaddress",
		"@no-local.edu",
		"user@",
		"user@domain",
		"user @x.edu",
	}

	for _, email := range testCases {
		if err := ValidateEmail(email); err == nil {
			t.Errorf("ValidateEmail(%q) error = nil, want error", email)
		}
	}
}

// TestValidatePassword 测试密码长度边界
func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("longpass1"); err != nil {
		t.Errorf("ValidatePassword(9 chars) error = %v, want nil", err)
	}
	if err := ValidatePassword("12345678"); err != nil {
		t.Errorf("ValidatePassword(8 chars) error = %v, want nil", err)
	}
	if err := ValidatePassword("1234567"); err == nil {
		t.Error("ValidatePassword(7 chars) error = nil, want error")
	}
	if err := ValidatePassword(""); err == nil {
		t.Error("ValidatePassword(\"\") error = nil, want error")
	}
}

// TestValidateName 测试姓名
func TestValidateName(t *testing.T) {
	for _, name := range []string{"张三", "A", "Li Lei"} {
		if err := ValidateName(name); err != nil {
			t.Errorf("ValidateName(%q) error = %v, want nil", name, err)
		}
	}
	for _, name := range []string{"", "   "} {
		if err := ValidateName(name); err == nil {
			t.Errorf("ValidateName(%q) error = nil, want error", name)
		}
	}
}

// TestValidateStudentID 测试学号格式
func TestValidateStudentID(t *testing.T) {
	for _, sid := range []string{"2021001", "20210012345"} {
		if err := ValidateStudentID(sid); err != nil {
			t.Errorf("ValidateStudentID(%q) error = %v, want nil", sid, err)
		}
	}
	for _, sid := range []string{"", "abc123", "123", "2021-001"} {
		if err := ValidateStudentID(sid); err == nil {
			t.Errorf("ValidateStudentID(%q) error = nil, want error", sid)
		}
	}
}
