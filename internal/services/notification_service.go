// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/autolend/leadmarket-backend/internal/config"
	"github.com/autolend/leadmarket-backend/internal/models"
	"github.com/autolend/leadmarket-backend/internal/utils"
)

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

type NotificationRequest struct {
	UserID    uuid.UUID              `json:"user_id" validate:"required"`
	Type      string                 `json:"type" validate:"required"`
	Title     string                 `json:"title" validate:"required"`
	Message   string                 `json:"message" validate:"required"`
	Data      map[string]interface{} `json:"data,omitempty"`
	SendEmail bool                   `json:"send_email,omitempty"`
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

// Authentication notifications
func (s *NotificationService) SendWelcomeEmail(user *models.User, verificationToken string) error {
	template := s.getEmailTemplate("welcome")

	data := map[string]interface{}{
		"Username":        user.Username,
		"VerificationURL": fmt.Sprintf("%s/verify-email?token=%s", s.config.Frontend.BaseURL, verificationToken),
		"PlatformName":    "AutoLend Marketplace",
	}

	subject := "Welcome to AutoLend Marketplace"
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

func (s *NotificationService) SendPasswordResetEmail(user *models.User, resetToken string) error {
	template := s.getEmailTemplate("password_reset")

	data := map[string]interface{}{
		"Username":  user.Username,
		"ResetURL":  fmt.Sprintf("%s/reset-password?token=%s", s.config.Frontend.BaseURL, resetToken),
		"ExpiresIn": "1 hour",
	}

	subject := "Password Reset Request"
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

// Application lifecycle notifications
func (s *NotificationService) SendApplicationReviewedNotification(app *models.Application, approved bool) error {
	if app.ApplicantID == nil {
		return nil
	}

	status := "rejected"
	title := "Application Not Approved"
	if approved {
		status = "approved"
		title = "Application Approved"
	}

	notification := &models.Notification{
		UserID:              app.ApplicantID,
		Type:                "application_reviewed",
		Title:               title,
		Message:             fmt.Sprintf("Your loan application has been %s.", status),
		RelatedResourceType: "application",
		RelatedResourceID:   &app.ID,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	var applicant models.User
	if err := s.db.First(&applicant, *app.ApplicantID).Error; err != nil {
		return nil
	}

	data := map[string]interface{}{
		"Username": applicant.Username,
		"Status":   status,
		"Notes":    app.ReviewNotes,
	}

	template := s.getEmailTemplate("application_reviewed")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(applicant.Email, title, body)
}

// Marketplace notifications
func (s *NotificationService) SendPurchaseConfirmationNotification(dealerID uuid.UUID, purchase *models.Purchase) error {
	var dealer models.User
	if err := s.db.First(&dealer, dealerID).Error; err != nil {
		return fmt.Errorf("dealer not found: %w", err)
	}

	notification := &models.Notification{
		UserID:              &dealer.ID,
		Type:                "purchase_confirmed",
		Title:               "Lead Purchase Confirmed",
		Message:             fmt.Sprintf("Your purchase of lead %s is confirmed. Amount: $%.2f.", purchase.ApplicationID, purchase.Amount),
		RelatedResourceType: "purchase",
		RelatedResourceID:   &purchase.ID,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	data := map[string]interface{}{
		"DealerName":  dealer.Username,
		"Amount":      purchase.Amount,
		"PurchaseID":  purchase.ID,
		"DownloadURL": fmt.Sprintf("%s/dealer/downloads/%s", s.config.Frontend.BaseURL, purchase.ApplicationID),
	}

	subject := "Lead Purchase Confirmation"
	template := s.getEmailTemplate("purchase_confirmation")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(dealer.Email, subject, body)
}

// Admin notifications
func (s *NotificationService) SendUserStatusChangeNotification(user *models.User, oldStatus models.UserStatus, reason string) error {
	data := map[string]interface{}{
		"Username":  user.Username,
		"NewStatus": user.Status,
		"OldStatus": oldStatus,
		"Reason":    reason,
	}

	subject := "Account Status Update"
	template := s.getEmailTemplate("user_status_change")
	body, err := s.renderTemplate(template.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return s.sendEmail(user.Email, subject, body)
}

// Generic notification methods
func (s *NotificationService) SendCustomNotification(req *NotificationRequest) error {
	notification := &models.Notification{
		UserID:  &req.UserID,
		Type:    req.Type,
		Title:   req.Title,
		Message: req.Message,
	}

	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if req.SendEmail {
		var user models.User
		if err := s.db.First(&user, req.UserID).Error; err != nil {
			return fmt.Errorf("user not found: %w", err)
		}

		return s.sendEmail(user.Email, req.Title, req.Message)
	}

	return nil
}

// GetUserNotifications lists a user's in-app notifications, newest first.
func (s *NotificationService) GetUserNotifications(userID uuid.UUID, params utils.PaginationParams) ([]models.Notification, int64, error) {
	query := s.db.Model(&models.Notification{}).Where("user_id = ?", userID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count notifications: %w", err)
	}

	query = query.Order("created_at DESC")
	query = utils.ApplyPagination(query, params)

	var notifications []models.Notification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to fetch notifications: %w", err)
	}

	return notifications, total, nil
}

// MarkNotificationRead marks a single notification as read.
func (s *NotificationService) MarkNotificationRead(notificationID, userID uuid.UUID) error {
	now := time.Now()
	result := s.db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Updates(map[string]interface{}{
			"status":  models.NotificationStatusRead,
			"read_at": now,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to mark notification read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("notification not found")
	}
	return nil
}

// Helper methods
func (s *NotificationService) sendEmail(to, subject, body string) error {
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		fmt.Printf("Email would be sent to %s: %s\n", to, subject)
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := []byte(fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func (s *NotificationService) renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

func (s *NotificationService) getEmailTemplate(templateType string) EmailTemplate {
	// In a real implementation, these would be loaded from files or database
	templates := map[string]EmailTemplate{
		"welcome": {
			Subject: "Welcome to AutoLend Marketplace",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.Username}}!</h2>
	<p>Thank you for joining AutoLend Marketplace. Please verify your email address by clicking the link below:</p>
	<a href="{{.VerificationURL}}">Verify Email</a>
	<p>Best regards,<br>{{.PlatformName}} Team</p>
</body>
</html>`,
		},
		"application_reviewed": {
			Subject: "Application Reviewed",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Application {{.Status}}</h2>
	<p>Hello {{.Username}},</p>
	<p>Your loan application has been {{.Status}}.</p>
	{{if .Notes}}<p>Notes: {{.Notes}}</p>{{end}}
	<p>Best regards,<br>AutoLend Marketplace Team</p>
</body>
</html>`,
		},
		"purchase_confirmation": {
			Subject: "Lead Purchase Confirmation",
			Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Purchase Confirmed</h2>
	<p>Hello {{.DealerName}},</p>
	<p>Your lead purchase is confirmed. Amount charged: ${{printf "%.2f" .Amount}}.</p>
	<a href="{{.DownloadURL}}">Download Lead Details</a>
	<p>Best regards,<br>AutoLend Marketplace Team</p>
</body>
</html>`,
		},
	}

	if template, exists := templates[templateType]; exists {
		return template
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
