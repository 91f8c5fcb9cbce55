package controller

import (
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"

	"catalog_import_v1_202608/internal/api/dto"
	"catalog_import_v1_202608/internal/middleware"
)

// ==================== 操作员账号 ====================

// operatorAccount 操作员账号（环境变量配置，无用户表）
type operatorAccount struct {
	Username     string
	PasswordHash string // bcrypt
	Role         string
}

type AuthController struct {
	operator operatorAccount
}

// NewAuthController 从环境变量装配操作员账号
// OPERATOR_USERNAME / OPERATOR_PASSWORD_HASH 未设置时使用默认账号 admin/admin123
func NewAuthController() *AuthController {
	username := os.Getenv("OPERATOR_USERNAME")
	hash := os.Getenv("OPERATOR_PASSWORD_HASH")

	if username == "" || hash == "" {
		username = "admin"
		// admin123
		generated, err := bcrypt.GenerateFromPassword([]byte("admin123"), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[Auth] 生成默认密码哈希失败: %v", err)
		}
		hash = string(generated)
		log.Println("[Auth] 未配置操作员账号，使用默认账号 admin（生产环境请设置 OPERATOR_USERNAME/OPERATOR_PASSWORD_HASH）")
	}

	return &AuthController{
		operator: operatorAccount{
			Username:     username,
			PasswordHash: hash,
			Role:         "operator",
		},
	}
}

// ==================== 登录接口 ====================

// Login 操作员登录
// @Summary 用户名密码登录，颁发 Access Token
// @Tags Auth
// @Accept json
// @Param body body dto.LoginReq true "登录信息"
// @Success 200 {object} map[string]interface{}
// @Router /api/auth/login [post]
func (ctrl *AuthController) Login(c *gin.Context) {
	var req dto.LoginReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"code": 400, "message": "参数错误: " + err.Error()})
		return
	}

	if req.Username != ctrl.operator.Username ||
		bcrypt.CompareHashAndPassword([]byte(ctrl.operator.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(401, gin.H{"code": 401, "message": "用户名或密码错误"})
		return
	}

	token, err := middleware.GenerateAccessToken(ctrl.operator.Username, ctrl.operator.Role)
	if err != nil {
		c.JSON(500, gin.H{"code": 500, "message": "生成 Token 失败: " + err.Error()})
		return
	}

	c.JSON(200, gin.H{
		"code":    0,
		"message": "登录成功",
		"data": gin.H{
			"access_token": token,
			"username":     ctrl.operator.Username,
			"role":         ctrl.operator.Role,
		},
	})
}
