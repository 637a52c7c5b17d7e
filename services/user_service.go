package services

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
	"gorm.io/gorm"
)

// Auth0UserInfo represents the user information returned from Auth0's
// /userinfo endpoint
type Auth0UserInfo struct {
	Sub   string `json:"sub"` // Auth0 user ID
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserService syncs Auth0 identities into local user records and serves the
// admin user listings
type UserService struct {
	db          *gorm.DB
	auth0Domain string
	httpClient  *http.Client
}

var userServiceInstance *UserService

// InitUserService initializes the user service from configuration
func InitUserService(db *gorm.DB) *UserService {
	userServiceInstance = NewUserService(db, config.GetConfig().Auth0Domain)
	return userServiceInstance
}

// GetUserService returns the user service instance
func GetUserService() *UserService {
	return userServiceInstance
}

// SetUserService sets the user service instance (primarily for testing)
func SetUserService(s *UserService) {
	userServiceInstance = s
}

// NewUserService creates a user service against the given Auth0 domain
func NewUserService(db *gorm.DB, auth0Domain string) *UserService {
	return &UserService{
		db:          db,
		auth0Domain: auth0Domain,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// GetUserInfo fetches user information from Auth0's /userinfo endpoint.
// accessToken is the JWT access token from the Authorization header.
func (s *UserService) GetUserInfo(accessToken string) (*Auth0UserInfo, error) {
	// If the domain already includes a protocol (for testing), use it as-is
	var url string
	if strings.HasPrefix(s.auth0Domain, "http://") || strings.HasPrefix(s.auth0Domain, "https://") {
		url = fmt.Sprintf("%s/userinfo", s.auth0Domain)
	} else {
		url = fmt.Sprintf("https://%s/userinfo", s.auth0Domain)
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Add("Authorization", "Bearer "+accessToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, NewUpstreamError(err, "failed to call userinfo endpoint")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, NewUpstreamError(nil, "userinfo endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var userInfo Auth0UserInfo
	if err := json.NewDecoder(resp.Body).Decode(&userInfo); err != nil {
		return nil, NewUpstreamError(err, "failed to decode userinfo response")
	}

	return &userInfo, nil
}

// SyncUser upserts the local user record for the given access token: a
// first login creates the account, later logins refresh name and email.
func (s *UserService) SyncUser(accessToken string) (*models.User, error) {
	info, err := s.GetUserInfo(accessToken)
	if err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, NewUpstreamError(nil, "userinfo response is missing the sub claim")
	}

	var user models.User
	err = s.db.First(&user, "auth0_id = ?", info.Sub).Error
	if err == gorm.ErrRecordNotFound {
		user = models.User{
			Auth0ID:  info.Sub,
			FullName: info.Name,
			Email:    info.Email,
			Role:     models.RoleUser,
		}
		if err := s.db.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		return &user, nil
	}
	if err != nil {
		return nil, err
	}

	if user.FullName != info.Name || user.Email != info.Email {
		updates := map[string]interface{}{
			"full_name": info.Name,
			"email":     info.Email,
		}
		if err := s.db.Model(&user).Updates(updates).Error; err != nil {
			return nil, err
		}
	}
	return &user, nil
}

// ListUsers lists all users (admin view)
func (s *UserService) ListUsers() ([]models.User, error) {
	var users []models.User
	err := s.db.Order("created_at desc").Find(&users).Error
	return users, err
}

// UserDetails returns one user by id
func (s *UserService) UserDetails(userID string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("user not found")
		}
		return nil, err
	}
	return &user, nil
}
