package models

import (
	"context"
	"errors"
	"html"
	"os"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/sitefocus/qctrack_backend/config"
	"bitbucket.org/sitefocus/qctrack_backend/utils"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin      = "Admin"
	RoleQcManager  = "QC Manager"
	RoleInspector  = "Inspector"
	RoleSupervisor = "Shift Supervisor"
)

type User struct {
	ID        int       `gorm:"primary_key" json:"id"`
	ProjectId string    `gorm:"index;size:64" json:"project_id"`
	Username  string    `gorm:"size:100;uniqueIndex;not null" json:"username" binding:"required"`
	Name      string    `gorm:"size:255" json:"name"`
	Email     *string   `gorm:"size:255;unique" json:"email"`
	Phone     string    `gorm:"size:50" json:"phone"`
	Password  string    `gorm:"size:255;not null" json:"-"`
	Role      string    `gorm:"size:50;not null;default:'Inspector'" json:"role"`
	IsActive  *bool     `gorm:"default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

type NewUser struct {
	ProjectId string `json:"project_id"`
	Username  string `json:"username" binding:"required"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password" binding:"required"`
	Role      string `json:"role"`
}

type LoginInfo struct {
	Token       string `json:"token"`
	Name        string `json:"name"`
	Role        string `json:"role"`
	ProjectId   string `json:"project_id"`
	ProjectName string `json:"project_name"`
}

func CreateUser(ctx context.Context, input *NewUser) (*User, error) {

	db := config.GetDB()

	if input.Email != "" && !utils.IsValidEmail(input.Email) {
		return nil, errors.New("invalid email address")
	}

	var count int64
	err := db.WithContext(ctx).Model(&User{}).
		Where("username = ?", input.Username).Or("email = ?", input.Email).
		Count(&count).Error
	if err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errors.New("duplicate username or email")
	}

	hashedPassword, err := utils.HashPassword(input.Password)
	if err != nil {
		return nil, err
	}

	role := input.Role
	if role == "" {
		role = RoleInspector
	}

	user := User{
		ProjectId: input.ProjectId,
		Username:  html.EscapeString(strings.TrimSpace(input.Username)),
		Name:      input.Name,
		Email:     utils.NilIfEmpty(strings.ToLower(input.Email)),
		Phone:     input.Phone,
		Password:  string(hashedPassword),
		Role:      role,
		IsActive:  utils.NewTrue(),
	}
	if err := db.WithContext(ctx).Create(&user).Error; err != nil {
		// The pre-check above races with concurrent signups; the unique
		// index is the authority.
		if isDuplicateKeyErr(err) {
			return nil, errors.New("duplicate username or email")
		}
		return nil, err
	}
	user.Password = ""
	return &user, nil
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func Login(ctx context.Context, username string, password string) (*LoginInfo, error) {

	db := config.GetDB()
	var user User

	err := db.WithContext(ctx).Model(&User{}).Where("username = ?", username).Take(&user).Error
	if err != nil {
		return nil, errors.New("invalid username or password")
	}

	err = utils.ComparePassword(user.Password, password)
	if err != nil && err == bcrypt.ErrMismatchedHashAndPassword {
		return nil, errors.New("invalid username or password")
	}

	if user.IsActive != nil && !*user.IsActive {
		return nil, errors.New("user is disabled")
	}

	result := LoginInfo{
		Token:     uuid.NewString(),
		Name:      user.Username,
		Role:      user.Role,
		ProjectId: user.ProjectId,
	}
	if user.ProjectId != "" {
		var project Project
		if err := db.WithContext(ctx).Where("id = ?", user.ProjectId).First(&project).Error; err == nil {
			result.ProjectName = project.Name
		}
	}

	tokenLifespan, err := strconv.Atoi(os.Getenv("TOKEN_HOUR_LIFESPAN"))
	if err != nil {
		tokenLifespan = 24
	}

	// the token set per user lets DestroyAllSessions revoke everything
	if err := config.AddRedisSet("Tokens:"+user.Username, result.Token); err != nil {
		return nil, err
	}
	if err := config.SetRedisValue("Token:"+result.Token, user.Username, time.Duration(tokenLifespan)*time.Hour); err != nil {
		return nil, err
	}

	return &result, nil
}

func Logout(ctx context.Context) (bool, error) {

	token, ok := utils.GetTokenFromContext(ctx)
	if !ok || token == "" {
		return false, errors.New("not logged in")
	}
	username, _ := utils.GetUsernameFromContext(ctx)

	if err := config.RemoveRedisKey("Token:" + token); err != nil {
		return false, err
	}
	if username != "" {
		if err := config.RemoveRedisSetMember("Tokens:"+username, token); err != nil {
			return false, err
		}
	}
	return true, nil
}

// DestroyAllSessions revokes every live token for the user.
func DestroyAllSessions(ctx context.Context, username string) error {

	tokens, err := config.GetRedisSetMembers("Tokens:" + username)
	if err != nil {
		return err
	}
	for _, token := range tokens {
		if err := config.RemoveRedisKey("Token:" + token); err != nil {
			return err
		}
	}
	return config.RemoveRedisKey("Tokens:" + username)
}

func GetUser(ctx context.Context, id int) (*User, error) {

	db := config.GetDB()
	var result User
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	result.Password = ""
	return &result, nil
}

func GetUserByUsername(ctx context.Context, username string) (*User, error) {

	db := config.GetDB()
	var result User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&result).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	result.Password = ""
	return &result, nil
}

func GetAllUsers(ctx context.Context) ([]*User, error) {

	db := config.GetDB()
	var results []*User

	projectId, _ := utils.GetProjectIdFromContext(ctx)
	dbCtx := db.WithContext(ctx)
	if projectId != "" {
		dbCtx = dbCtx.Where("project_id = ?", projectId)
	}
	if err := dbCtx.Order("username").Find(&results).Error; err != nil {
		return nil, err
	}
	for _, u := range results {
		u.Password = ""
	}
	return results, nil
}

func ChangePassword(ctx context.Context, oldPassword string, newPassword string) (*User, error) {

	db := config.GetDB()
	username, ok := utils.GetUsernameFromContext(ctx)
	if !ok || username == "" {
		return nil, errors.New("not logged in")
	}

	var user User
	if err := db.WithContext(ctx).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, utils.ErrorRecordNotFound
	}
	if err := utils.ComparePassword(user.Password, oldPassword); err != nil {
		return nil, errors.New("invalid password")
	}

	hashedPassword, err := utils.HashPassword(newPassword)
	if err != nil {
		return nil, err
	}
	user.Password = string(hashedPassword)
	if err := db.WithContext(ctx).Save(&user).Error; err != nil {
		return nil, err
	}

	// a password change invalidates every other session
	if err := DestroyAllSessions(ctx, username); err != nil {
		return nil, err
	}
	user.Password = ""
	return &user, nil
}
