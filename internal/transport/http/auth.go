package httptransport

import (
	"errors"

	"github.com/gin-gonic/gin"

	"whisperflow/backend/internal/auth"
	jwtpkg "whisperflow/backend/internal/auth/jwt"
)

// AuthHandler 管理后台认证处理器
type AuthHandler struct {
	authService *auth.Service
	jwtManager  *jwtpkg.Manager
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(authService *auth.Service, jwtManager *jwtpkg.Manager) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		jwtManager:  jwtManager,
	}
}

// loginRequest 登录请求体
type loginRequest struct {
	Identifier string `json:"identifier" binding:"required"` // 邮箱或用户名
	Password   string `json:"password" binding:"required"`
}

// Login godoc
// @Summary 管理员登录
// @Description 使用邮箱或用户名登录，返回JWT令牌对
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body loginRequest true "登录凭证"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Router /v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	user, err := h.authService.Login(auth.LoginInput{
		Identifier: req.Identifier,
		Password:   req.Password,
	})
	if err != nil {
		if errors.Is(err, auth.ErrUserInactive) {
			Forbidden(c, GetErrorMessage(err))
			return
		}
		Unauthorized(c, GetErrorMessage(auth.ErrInvalidCredentials))
		return
	}

	pair, err := h.jwtManager.GenerateTokenPair(user.ID, user.Email, string(user.Role))
	if err != nil {
		InternalError(c, MsgInternalError)
		return
	}

	Success(c, gin.H{
		"user":   user,
		"tokens": pair,
	})
}

// refreshRequest 刷新令牌请求体
type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// Refresh godoc
// @Summary 刷新访问令牌
// @Tags Auth
// @Accept json
// @Produce json
// @Param request body refreshRequest true "刷新令牌"
// @Success 200 {object} Response
// @Failure 401 {object} Response
// @Router /v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, MsgInvalidJSON)
		return
	}

	accessToken, err := h.jwtManager.RefreshAccessToken(req.RefreshToken)
	if err != nil {
		Unauthorized(c, "刷新令牌无效或已过期")
		return
	}

	Success(c, gin.H{
		"accessToken": accessToken,
	})
}

// Me godoc
// @Summary 获取当前登录用户
// @Tags Auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=domain.User}
// @Failure 401 {object} Response
// @Router /v1/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	userID, exists := c.Get("userID")
	if !exists {
		Unauthorized(c, "未登录")
		return
	}

	user, err := h.authService.GetUserByID(userID.(string))
	if err != nil {
		Unauthorized(c, GetErrorMessage(err))
		return
	}

	Success(c, user)
}
