package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cabby-rentals/cabby-api/models"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// ReminderWindow is how far ahead the will-start/will-end generators look
const ReminderWindow = 30 * time.Minute

// FreeHoursThreshold is the weekly rented duration that earns the bonus offer
const FreeHoursThreshold = 20 * time.Hour

// NotificationService creates in-app notification rows and fans them out as
// push messages. Generation is idempotent per (event, user, param); push
// delivery is best effort.
type NotificationService struct {
	db *gorm.DB
}

var notificationServiceInstance *NotificationService

// InitNotificationService initializes the notification service
func InitNotificationService(db *gorm.DB) *NotificationService {
	notificationServiceInstance = &NotificationService{db: db}
	return notificationServiceInstance
}

// GetNotificationService returns the notification service instance
func GetNotificationService() *NotificationService {
	return notificationServiceInstance
}

// SetNotificationService sets the notification service instance (primarily for testing)
func SetNotificationService(s *NotificationService) {
	notificationServiceInstance = s
}

// NewNotificationService creates a notification service on the given database
func NewNotificationService(db *gorm.DB) *NotificationService {
	return &NotificationService{db: db}
}

// SendPushToUser looks up the user's device token and delivers a push
// message. A missing token is a non-fatal skip; delivery errors are logged
// and swallowed.
func (s *NotificationService) SendPushToUser(ctx context.Context, userID, title, body string, data map[string]string) {
	var deviceToken models.UserDeviceToken
	if err := s.db.First(&deviceToken, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			logrus.Infof("no device token for user %s, skipping push", userID)
			return
		}
		logrus.Errorf("device token lookup failed for user %s: %v", userID, err)
		return
	}

	sender := GetPushSender()
	if sender == nil {
		return
	}
	if err := sender.Send(ctx, deviceToken.Token, title, body, data); err != nil {
		logrus.Errorf("push delivery failed for user %s: %v", userID, err)
	}
}

// NotifyOnce creates a notification row unless one already exists for the
// same (event, user, param), and pushes it to the user's device. Returns
// true when a new row was created.
func (s *NotificationService) NotifyOnce(ctx context.Context, event models.NotificationEvent, userID string, param *string, title, content string) (bool, error) {
	query := s.db.Model(&models.Notification{}).
		Where("event = ? AND user_id = ?", event, userID)
	if param != nil {
		query = query.Where("param = ?", *param)
	}

	var existing int64
	if err := query.Count(&existing).Error; err != nil {
		return false, err
	}
	if existing > 0 {
		return false, nil
	}

	notification := &models.Notification{
		Event:   event,
		UserID:  userID,
		Param:   param,
		Title:   title,
		Content: content,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return false, err
	}

	s.SendPushToUser(ctx, userID, title, content, map[string]string{"type": "event", "event": string(event)})
	return true, nil
}

// GenerateWillStartReminders notifies users whose rental starts within the
// reminder window, at most once per order.
func (s *NotificationService) GenerateWillStartReminders(ctx context.Context, now time.Time) (int, error) {
	var orders []models.Order
	err := s.db.Preload("Vehicle").
		Where("rental_start_date > ? AND rental_start_date <= ?", now, now.Add(ReminderWindow)).
		Find(&orders).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range orders {
		o := orders[i]
		content := fmt.Sprintf(
			"Je hebt een geplande reservering. Vergeet niet de %s %s op te halen.",
			o.Vehicle.CompanyName, o.Vehicle.Model)

		ok, err := s.NotifyOnce(ctx, models.NotificationOrderWillStart, o.UserID, &o.ID,
			"Herinnering: Geplande reservering", content)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// GenerateWillEndReminders notifies users whose rental ends within the
// reminder window, at most once per order.
func (s *NotificationService) GenerateWillEndReminders(ctx context.Context, now time.Time) (int, error) {
	var orders []models.Order
	err := s.db.Preload("Vehicle").
		Where("rental_end_date > ? AND rental_end_date <= ?", now, now.Add(ReminderWindow)).
		Find(&orders).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for i := range orders {
		o := orders[i]
		content := fmt.Sprintf(
			"Je rit eindigt over 30 minuten. Vergeet niet de %s %s terug te brengen naar de aangewezen locatie of laat hem achter op de bestemming.",
			o.Vehicle.CompanyName, o.Vehicle.Model)

		ok, err := s.NotifyOnce(ctx, models.NotificationOrderWillEnd, o.UserID, &o.ID,
			"Herinnering: Auto terugbrengen", content)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// GenerateFreeHoursOffers sends the one-time bonus offer to users who rented
// more than the threshold within the current week. The existence check is on
// (event, user) only, so the offer goes out at most once per user ever.
func (s *NotificationService) GenerateFreeHoursOffers(ctx context.Context, now time.Time) (int, error) {
	weekStart := startOfWeek(now)

	var orders []models.Order
	err := s.db.
		Where("rental_start_date >= ? AND rental_start_date < ?", weekStart, weekStart.AddDate(0, 0, 7)).
		Find(&orders).Error
	if err != nil {
		return 0, err
	}

	totals := make(map[string]time.Duration)
	for i := range orders {
		o := orders[i]
		totals[o.UserID] += o.RentalEndDate.Sub(o.RentalStartDate)
	}

	created := 0
	for userID, total := range totals {
		if total <= FreeHoursThreshold {
			continue
		}
		ok, err := s.NotifyOnce(ctx, models.NotificationFreeHours, userID, nil,
			"Gratis 5 uur extra ontvangen?",
			"Heb je deze week al 20 uur gehuurd? Stuur ons een bericht dan ontvang je 5 uur extra van ons.")
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// dutchHolidays maps month/day to the holiday name used in the reminder.
// King's Day and the fixed-date Christian holidays; movable feasts are not
// tracked.
var dutchHolidays = map[string]string{
	"01-01": "Nieuwjaarsdag",
	"04-27": "Koningsdag",
	"12-25": "Eerste Kerstdag",
	"12-26": "Tweede Kerstdag",
}

// GenerateHolidayReminders greets every user on a holiday, at most once per
// user per date.
func (s *NotificationService) GenerateHolidayReminders(ctx context.Context, now time.Time) (int, error) {
	name, ok := dutchHolidays[now.Format("01-02")]
	if !ok {
		return 0, nil
	}

	var users []models.User
	if err := s.db.Find(&users).Error; err != nil {
		return 0, err
	}

	date := now.Format("2006-01-02")
	created := 0
	for i := range users {
		content := fmt.Sprintf("Fijne %s! Het team van Cabby wenst je een mooie dag toe.", name)
		ok, err := s.NotifyOnce(ctx, models.NotificationHolidayReminder, users[i].ID, &date,
			"Fijne feestdag", content)
		if err != nil {
			return created, err
		}
		if ok {
			created++
		}
	}
	return created, nil
}

// ListOpen returns the user's notifications that have not been closed
func (s *NotificationService) ListOpen(userID string) ([]models.Notification, error) {
	var notifications []models.Notification
	err := s.db.
		Where("user_id = ? AND closed_at IS NULL", userID).
		Order("created_at desc").
		Find(&notifications).Error
	return notifications, err
}

// CountOpen returns the number of open notifications for a user
func (s *NotificationService) CountOpen(userID string) (int64, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("user_id = ? AND closed_at IS NULL", userID).
		Count(&count).Error
	return count, err
}

// Close marks one of the user's notifications as read
func (s *NotificationService) Close(userID string, id uint) error {
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND closed_at IS NULL", id, userID).
		Update("closed_at", time.Now())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return NewNotFoundError("notification not found")
	}
	return nil
}

// RegisterDeviceToken stores or replaces the user's FCM device token
func (s *NotificationService) RegisterDeviceToken(userID, token string) error {
	var existing models.UserDeviceToken
	err := s.db.First(&existing, "user_id = ?", userID).Error
	if err == gorm.ErrRecordNotFound {
		return s.db.Create(&models.UserDeviceToken{UserID: userID, Token: token}).Error
	}
	if err != nil {
		return err
	}
	return s.db.Model(&existing).Update("token", token).Error
}

// RunScheduler invokes the time-window generators on a fixed interval until
// the context is canceled.
func (s *NotificationService) RunScheduler(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			if _, err := s.GenerateWillStartReminders(ctx, now); err != nil {
				logrus.Errorf("will-start reminder generation failed: %v", err)
			}
			if _, err := s.GenerateWillEndReminders(ctx, now); err != nil {
				logrus.Errorf("will-end reminder generation failed: %v", err)
			}
			if _, err := s.GenerateFreeHoursOffers(ctx, now); err != nil {
				logrus.Errorf("free-hours offer generation failed: %v", err)
			}
			if _, err := s.GenerateHolidayReminders(ctx, now); err != nil {
				logrus.Errorf("holiday reminder generation failed: %v", err)
			}
		}
	}
}

func startOfWeek(t time.Time) time.Time {
	// ISO week: Monday 00:00
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return day.AddDate(0, 0, -(weekday - 1))
}
