package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	appConfig "github.com/cabby-rentals/cabby-api/config"
	"github.com/cabby-rentals/cabby-api/models"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// VehicleCommander issues remote lock/unlock commands for an order's vehicle
type VehicleCommander interface {
	LockVehicle(ctx context.Context, orderID, userID string) (*models.Order, error)
	UnlockVehicle(ctx context.Context, orderID, userID string) (*models.Order, error)
}

var (
	vehicleCommanderInstance VehicleCommander
	teslaServiceInstance     *TeslaService
)

// GetVehicleCommander returns the vehicle commander instance
func GetVehicleCommander() VehicleCommander {
	return vehicleCommanderInstance
}

// SetVehicleCommander sets the vehicle commander instance (primarily for testing)
func SetVehicleCommander(c VehicleCommander) {
	vehicleCommanderInstance = c
}

// GetTeslaService returns the concrete Tesla service, for the OAuth
// endpoints that live outside the VehicleCommander interface
func GetTeslaService() *TeslaService {
	return teslaServiceInstance
}

// TeslaService talks to the Tesla Fleet API: wake protocol, door commands
// and OAuth token upkeep.
//
// The token record is a process-wide shared credential (not per-vehicle).
// All refreshes are serialized through tokenMu so two concurrent commands
// cannot overwrite each other's fresh token with a stale one. Commands for
// the same order are serialized through inFlight: a second caller fails fast
// instead of racing the first one through the wake phase.
type TeslaService struct {
	db *gorm.DB

	apiBase      string
	authBase     string
	clientID     string
	clientSecret string
	redirectURI  string

	opsWebhookURL string
	wakeAttempts  int
	wakeDelay     time.Duration

	httpClient *http.Client

	tokenMu  sync.Mutex
	inFlight sync.Map
}

// InitTeslaService initializes the Tesla service from the loaded configuration
func InitTeslaService(db *gorm.DB) *TeslaService {
	cfg := appConfig.GetConfig()

	s := NewTeslaService(db, cfg.TeslaAPIBase, cfg.TeslaAuthBase)
	s.clientID = cfg.TeslaClientID
	s.clientSecret = cfg.TeslaClientSecret
	s.redirectURI = cfg.TeslaRedirectURI
	s.opsWebhookURL = cfg.OpsWebhookURL
	s.wakeAttempts = cfg.TeslaWakeAttempts
	s.wakeDelay = cfg.TeslaWakeDelay

	vehicleCommanderInstance = s
	teslaServiceInstance = s
	return s
}

// NewTeslaService creates a Tesla service against custom API bases (used by
// tests with local HTTP servers)
func NewTeslaService(db *gorm.DB, apiBase, authBase string) *TeslaService {
	return &TeslaService{
		db:           db,
		apiBase:      apiBase,
		authBase:     authBase,
		wakeAttempts: 15,
		wakeDelay:    2000 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// UnlockVehicle wakes the vehicle and unlocks its doors
func (s *TeslaService) UnlockVehicle(ctx context.Context, orderID, userID string) (*models.Order, error) {
	return s.command(ctx, orderID, userID, "door_unlock", true)
}

// LockVehicle wakes the vehicle and locks its doors
func (s *TeslaService) LockVehicle(ctx context.Context, orderID, userID string) (*models.Order, error) {
	return s.command(ctx, orderID, userID, "door_lock", false)
}

func (s *TeslaService) command(ctx context.Context, orderID, userID, command string, unlocked bool) (*models.Order, error) {
	// At most one in-flight command per order
	if _, busy := s.inFlight.LoadOrStore(orderID, struct{}{}); busy {
		return nil, NewValidationError("a vehicle command is already in progress for this order")
	}
	defer s.inFlight.Delete(orderID)

	order, err := s.validateOrderAndRental(orderID, userID)
	if err != nil {
		return nil, err
	}

	token, err := s.latestToken()
	if err != nil {
		return nil, err
	}

	if err := s.wakeVehicle(ctx, order.Vehicle.VIN, token.Token); err != nil {
		return nil, err
	}
	s.audit(fmt.Sprintf("Vehicle is now online - %s", time.Now().Format(time.RFC1123)), userID, orderID)

	if err := s.sendCommand(ctx, order.Vehicle.VIN, command); err != nil {
		return nil, err
	}

	if unlocked {
		s.audit(fmt.Sprintf("Vehicle unlocked - %s", time.Now().Format(time.RFC1123)), userID, orderID)
	} else {
		s.audit(fmt.Sprintf("Vehicle locked - %s", time.Now().Format(time.RFC1123)), userID, orderID)
	}

	if err := s.db.Model(order).Update("is_vehicle_unlocked", unlocked).Error; err != nil {
		return nil, fmt.Errorf("failed to persist lock state: %w", err)
	}
	order.IsVehicleUnlocked = unlocked
	return order, nil
}

// validateOrderAndRental checks the command preconditions: the order is
// CONFIRMED, belongs to the caller, its rental window has started and the
// vehicle has a VIN.
func (s *TeslaService) validateOrderAndRental(orderID, userID string) (*models.Order, error) {
	var order models.Order
	if err := s.db.Preload("Vehicle").Preload("User").First(&order, "id = ?", orderID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("order not found")
		}
		return nil, err
	}

	if order.Status != models.OrderStatusConfirmed {
		return nil, NewValidationError("order is not confirmed")
	}
	if order.UserID != userID {
		return nil, NewUnauthorizedError("user not authorized for this order")
	}
	if time.Now().Before(order.RentalStartDate) {
		return nil, NewValidationError("rental has not started yet")
	}
	if order.Vehicle.VIN == "" {
		return nil, NewNotFoundError("vehicle VIN not found")
	}

	return &order, nil
}

func (s *TeslaService) latestToken() (*models.TeslaToken, error) {
	var token models.TeslaToken
	if err := s.db.Order("created_at desc").First(&token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, NewNotFoundError("Tesla API token not found")
		}
		return nil, err
	}
	if token.RefreshToken == "" {
		return nil, NewNotFoundError("Tesla API refresh token not found")
	}
	return &token, nil
}

type wakeResponse struct {
	Response struct {
		State string `json:"state"`
	} `json:"response"`
}

// wakeVehicle polls the wake endpoint until the vehicle reports "online".
// A 401 refreshes the token and retries immediately without the delay; a
// 429 aborts with the Retry-After value and is never retried here. The
// context cancels the wait between attempts.
func (s *TeslaService) wakeVehicle(ctx context.Context, vin, bearer string) error {
	wakeURL := fmt.Sprintf("%s/api/1/vehicles/%s/wake_up", s.apiBase, vin)

	for attempt := 1; attempt <= s.wakeAttempts; attempt++ {
		resp, err := s.post(ctx, wakeURL, bearer)
		if err != nil {
			return NewUpstreamError(err, "failed to reach vehicle API")
		}

		switch resp.StatusCode {
		case http.StatusUnauthorized:
			resp.Body.Close()
			logrus.Info("Tesla API token expired, refreshing")
			refreshed, err := s.refreshAfterUnauthorized(ctx, bearer)
			if err != nil {
				return err
			}
			bearer = refreshed
			continue

		case http.StatusTooManyRequests:
			retryAfter := resp.Header.Get("Retry-After")
			resp.Body.Close()
			return NewRateLimitError(retryAfter)
		}

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			return NewUpstreamError(nil, "error waking up vehicle: %d %s", resp.StatusCode, string(body))
		}

		var wake wakeResponse
		decodeErr := json.NewDecoder(resp.Body).Decode(&wake)
		resp.Body.Close()
		if decodeErr != nil {
			return NewUpstreamError(decodeErr, "failed to decode wake response")
		}

		if wake.Response.State == "online" {
			logrus.Infof("vehicle %s is now online", vin)
			return nil
		}

		logrus.Infof("vehicle %s state: %s (attempt %d of %d)", vin, wake.Response.State, attempt, s.wakeAttempts)

		if attempt < s.wakeAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("wake-up aborted: %w", ctx.Err())
			case <-time.After(s.wakeDelay):
			}
		}
	}

	return NewUpstreamError(nil, "vehicle failed to come online after maximum attempts")
}

type commandResponse struct {
	Response struct {
		Result bool   `json:"result"`
		Reason string `json:"reason"`
	} `json:"response"`
}

// sendCommand issues a single door command with a freshly validated token.
// No retries at this layer; the caller may re-issue the whole operation.
func (s *TeslaService) sendCommand(ctx context.Context, vin, command string) error {
	bearer, err := s.validBearer(ctx)
	if err != nil {
		return err
	}

	commandURL := fmt.Sprintf("%s/api/1/vehicles/%s/command/%s", s.apiBase, vin, command)
	resp, err := s.post(ctx, commandURL, bearer)
	if err != nil {
		return NewUpstreamError(err, "failed to reach vehicle API")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return NewRateLimitError(resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return NewUpstreamError(nil, "vehicle command %s returned status %d: %s", command, resp.StatusCode, string(body))
	}

	var result commandResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return NewUpstreamError(err, "failed to decode command response")
	}
	if !result.Response.Result {
		return NewUpstreamError(nil, "vehicle rejected %s command: %s", command, result.Response.Reason)
	}

	return nil
}

func (s *TeslaService) post(ctx context.Context, url, bearer string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+bearer)
	return s.httpClient.Do(req)
}

// validBearer returns a non-expired access token, refreshing proactively
// when the stored one has passed its expiry.
func (s *TeslaService) validBearer(ctx context.Context) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	token, err := s.latestToken()
	if err != nil {
		return "", err
	}
	if !token.IsExpired(time.Now()) {
		return token.Token, nil
	}
	return s.refreshLocked(ctx, token)
}

// refreshAfterUnauthorized refreshes the token after a 401. If a concurrent
// caller already refreshed while we waited on the mutex, its token is reused
// instead of refreshing twice.
func (s *TeslaService) refreshAfterUnauthorized(ctx context.Context, usedBearer string) (string, error) {
	s.tokenMu.Lock()
	defer s.tokenMu.Unlock()

	token, err := s.latestToken()
	if err != nil {
		return "", err
	}
	if token.Token != usedBearer {
		return token.Token, nil
	}
	return s.refreshLocked(ctx, token)
}

type teslaTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// refreshLocked exchanges the refresh token and updates the stored record in
// place. Callers must hold tokenMu.
func (s *TeslaService) refreshLocked(ctx context.Context, token *models.TeslaToken) (string, error) {
	refreshed, err := s.postToken(ctx, map[string]string{
		"grant_type":    "refresh_token",
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
		"refresh_token": token.RefreshToken,
	})
	if err != nil {
		return "", NewCredentialError(err, "failed to refresh Tesla API token")
	}

	updates := map[string]interface{}{
		"token": refreshed.AccessToken,
	}
	if refreshed.RefreshToken != "" {
		updates["refresh_token"] = refreshed.RefreshToken
	}
	if refreshed.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(refreshed.ExpiresIn) * time.Second)
		updates["expires_at"] = expiresAt
	}

	if err := s.db.Model(token).Updates(updates).Error; err != nil {
		return "", fmt.Errorf("failed to store refreshed token: %w", err)
	}

	logrus.Info("Tesla API token refreshed successfully")
	return refreshed.AccessToken, nil
}

// ExchangeAuthorizationCode trades an OAuth authorization code for a token
// pair and stores it as a new record. Used by the auth callback endpoint.
func (s *TeslaService) ExchangeAuthorizationCode(ctx context.Context, code string) (*models.TeslaToken, error) {
	exchanged, err := s.postToken(ctx, map[string]string{
		"grant_type":    "authorization_code",
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
		"code":          code,
		"redirect_uri":  s.redirectURI,
		"scope":         "openid vehicle_cmds offline_access",
		"audience":      s.apiBase,
	})
	if err != nil {
		return nil, NewCredentialError(err, "failed to exchange authorization code")
	}

	token := &models.TeslaToken{
		Token:             exchanged.AccessToken,
		RefreshToken:      exchanged.RefreshToken,
		AuthorizationCode: code,
	}
	if exchanged.ExpiresIn > 0 {
		expiresAt := time.Now().Add(time.Duration(exchanged.ExpiresIn) * time.Second)
		token.ExpiresAt = &expiresAt
	}

	if err := s.db.Create(token).Error; err != nil {
		return nil, fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// PartnerToken obtains a client-credentials partner token and registers the
// partner account with the Fleet API
func (s *TeslaService) PartnerToken(ctx context.Context) (string, error) {
	partner, err := s.postToken(ctx, map[string]string{
		"grant_type":    "client_credentials",
		"client_id":     s.clientID,
		"client_secret": s.clientSecret,
		"audience":      s.apiBase,
	})
	if err != nil {
		return "", NewCredentialError(err, "failed to obtain partner token")
	}

	resp, err := s.post(ctx, s.apiBase+"/api/1/partner_accounts", partner.AccessToken)
	if err != nil {
		return "", NewUpstreamError(err, "failed to reach vehicle API")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", NewUpstreamError(nil, "partner registration returned status %d: %s", resp.StatusCode, string(body))
	}

	return partner.AccessToken, nil
}

func (s *TeslaService) postToken(ctx context.Context, payload map[string]string) (*teslaTokenResponse, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.authBase+"/oauth2/v3/token", bytes.NewReader(encoded))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("token endpoint returned status %d: %s", resp.StatusCode, string(body))
	}

	var token teslaTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	return &token, nil
}

// audit posts a best-effort message to the operational webhook. Failures
// are logged and swallowed.
func (s *TeslaService) audit(message, userID, orderID string) {
	if s.opsWebhookURL == "" {
		return
	}

	payload, err := json.Marshal(map[string]string{
		"message": message,
		"user":    userID,
		"orderId": orderID,
	})
	if err != nil {
		return
	}

	resp, err := s.httpClient.Post(s.opsWebhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		logrus.Errorf("audit webhook failed: %v", err)
		return
	}
	resp.Body.Close()
}
