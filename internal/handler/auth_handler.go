package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/twinlog/internal/db"
	"gorm.io/gorm"
)

const (
	sessionUserIDKey   = "user_id"
	sessionUsernameKey = "username"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register 创建新用户。
func (a *API) Register(c *gin.Context) {
	var payload credentialsRequest
	if !bindJSON(c, &payload, "请填写用户名和密码") {
		return
	}

	user, err := db.CreateUser(a.db.WithContext(c.Request.Context()), payload.Username, payload.Password)
	if err != nil {
		switch {
		case errors.Is(err, db.ErrInvalidCredentials):
			respondError(c, http.StatusBadRequest, "请填写用户名和密码")
		case errors.Is(err, db.ErrUserExists):
			respondError(c, http.StatusConflict, "用户名已存在")
		default:
			a.logger.Error().Err(err).Msg("create user failed")
			respondError(c, http.StatusInternalServerError, "注册失败")
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{"user": gin.H{"id": user.ID, "username": user.Username}})
}

// Login 校验账号密码，写入会话并签发扩展使用的令牌。
func (a *API) Login(c *gin.Context) {
	var payload credentialsRequest
	if !bindJSON(c, &payload, "请填写用户名和密码") {
		return
	}

	user, err := db.Authenticate(a.db.WithContext(c.Request.Context()), payload.Username, payload.Password)
	if err != nil {
		respondError(c, http.StatusUnauthorized, "用户名或密码错误")
		return
	}

	session := sessions.Default(c)
	session.Set(sessionUserIDKey, user.ID)
	session.Set(sessionUsernameKey, user.Username)
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}

	response := gin.H{"user": gin.H{"id": user.ID, "username": user.Username}}
	if a.tokens != nil {
		token, expiresAt, err := a.tokens.Issue(user.ID, user.Username)
		if err != nil {
			a.logger.Error().Err(err).Msg("issue token failed")
			respondError(c, http.StatusInternalServerError, "令牌签发失败")
			return
		}
		response["token"] = token
		response["expiresAt"] = expiresAt.UTC().Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, response)
}

// Logout 清除会话。
func (a *API) Logout(c *gin.Context) {
	session := sessions.Default(c)
	session.Clear()
	if err := session.Save(); err != nil {
		respondError(c, http.StatusInternalServerError, "会话保存失败")
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "已退出登录"})
}

// Me 返回当前登录用户。
func (a *API) Me(c *gin.Context) {
	var user db.User
	if err := a.db.WithContext(c.Request.Context()).First(&user, currentUserID(c)).Error; err != nil {
		respondError(c, http.StatusUnauthorized, "请先登录")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": gin.H{"id": user.ID, "username": user.Username, "isAdmin": user.IsAdmin}})
}

// AuthRequired 接受会话 Cookie 或 Bearer 令牌，未登录时返回 401。
func (a *API) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := a.bearerUser(c); ok {
			c.Set(contextUserIDKey, userID)
			c.Next()
			return
		}

		session := sessions.Default(c)
		if userID, ok := session.Get(sessionUserIDKey).(uint); ok && userID != 0 {
			c.Set(contextUserIDKey, userID)
			c.Next()
			return
		}

		respondError(c, http.StatusUnauthorized, "请先登录")
		c.Abort()
	}
}

func (a *API) bearerUser(c *gin.Context) (uint, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if a.tokens == nil || len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return 0, false
	}
	claims, err := a.tokens.Validate(header[7:])
	if err != nil {
		a.logger.Debug().Err(err).Msg("reject bearer token")
		return 0, false
	}
	return claims.UserID, true
}

// AdminRequired 只放行管理员，需放在 AuthRequired 之后。
func (a *API) AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		var user db.User
		err := a.db.WithContext(c.Request.Context()).First(&user, currentUserID(c)).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			a.logger.Error().Err(err).Msg("load user failed")
			respondError(c, http.StatusInternalServerError, "获取用户信息失败")
			c.Abort()
			return
		}
		if err != nil || !user.IsAdmin {
			respondError(c, http.StatusForbidden, "需要管理员权限")
			c.Abort()
			return
		}
		c.Next()
	}
}
