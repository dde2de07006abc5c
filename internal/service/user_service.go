package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/seludoto/dolesecommerce/internal/auth"
	"github.com/seludoto/dolesecommerce/internal/config"
	"github.com/seludoto/dolesecommerce/internal/datamodels/user"
)

type UserService struct {
	repo user.Repository
	jwt  *config.JWTConfig
}

func NewUserService(repo user.Repository, jwt *config.JWTConfig) *UserService {
	return &UserService{repo: repo, jwt: jwt}
}

func hashPassword(raw, salt string) string {
	h := sha256.Sum256([]byte(raw + salt))
	return hex.EncodeToString(h[:])
}

// normalizePhone 把 07xx / +254 等写法统一成 254 开头的国际格式
func normalizePhone(phone string) string {
	p := strings.TrimSpace(phone)
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = "254" + p[1:]
	}
	return p
}

// Register 注册新用户，盐为随机值
func (s *UserService) Register(ctx context.Context, username, email, phone, password string) (*user.User, error) {
	if username == "" || password == "" {
		return nil, errors.New("用户名和密码不能为空")
	}
	u := &user.User{
		Username: username,
		Email:    email,
		Phone:    normalizePhone(phone),
		Salt:     strings.ReplaceAll(uuid.NewString(), "-", ""),
	}
	u.Password = hashPassword(password, u.Salt)
	if err := s.repo.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Login 登录并返回 JWT
func (s *UserService) Login(ctx context.Context, username, password string) (string, error) {
	u, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return "", err
	}
	if hashPassword(password, u.Salt) != u.Password {
		return "", errors.New("用户名或密码错误")
	}
	return auth.GenerateToken(s.jwt, u.ID, u.Username)
}

// GetByID 查询用户
func (s *UserService) GetByID(ctx context.Context, id int64) (*user.User, error) {
	return s.repo.GetByID(ctx, id)
}

// IsAdmin 判断用户是否后台管理员
func (s *UserService) IsAdmin(ctx context.Context, id int64) bool {
	u, err := s.repo.GetByID(ctx, id)
	return err == nil && u != nil && u.IsAdmin
}
