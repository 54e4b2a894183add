package db

import (
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	// ErrUserExists 表示用户名已被占用。
	ErrUserExists = errors.New("user already exists")
	// ErrInvalidCredentials 表示用户名或密码为空。
	ErrInvalidCredentials = errors.New("username and password are required")
)

// User 是拥有浏览历史的账号，每个用户对应一份历史记录。
type User struct {
	gorm.Model
	Username string `gorm:"unique;not null"`
	Password string `gorm:"not null"`
	// IsAdmin 允许修改全局 AI 设置。
	IsAdmin bool `gorm:"not null;default:false"`
}

// CreateUser 使用 bcrypt 哈希密码并创建用户。
func CreateUser(gdb *gorm.DB, username, password string) (*User, error) {
	trimmedUser := strings.TrimSpace(username)
	trimmedPassword := strings.TrimSpace(password)
	if trimmedUser == "" || trimmedPassword == "" {
		return nil, ErrInvalidCredentials
	}
	if gdb == nil {
		return nil, errors.New("database not initialized")
	}

	var existing User
	err := gdb.Where("username = ?", trimmedUser).First(&existing).Error
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(trimmedPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{Username: trimmedUser, Password: string(hashed)}
	if err := gdb.Create(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// EnsureUser 在用户名与密码均非空时确保初始管理员存在，已存在的账号只会被设为管理员。
func EnsureUser(gdb *gorm.DB, username, password string) error {
	if strings.TrimSpace(username) == "" || strings.TrimSpace(password) == "" {
		return nil
	}
	_, err := CreateUser(gdb, username, password)
	if err != nil && !errors.Is(err, ErrUserExists) {
		return err
	}
	return SetAdmin(gdb, username, true)
}

// SetAdmin 修改用户的管理员标记，用户不存在时返回 gorm.ErrRecordNotFound。
func SetAdmin(gdb *gorm.DB, username string, admin bool) error {
	res := gdb.Model(&User{}).Where("username = ?", strings.TrimSpace(username)).Update("is_admin", admin)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// Authenticate 校验用户名和密码，与 CreateUser 一样忽略首尾空白，失败时返回 gorm.ErrRecordNotFound 或 bcrypt 错误。
func Authenticate(gdb *gorm.DB, username, password string) (*User, error) {
	var user User
	if err := gdb.Where("username = ?", strings.TrimSpace(username)).First(&user).Error; err != nil {
		return nil, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(strings.TrimSpace(password))); err != nil {
		return nil, err
	}
	return &user, nil
}
