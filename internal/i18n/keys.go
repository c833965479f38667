// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"
	KeyWarning = "warning"
	KeyInfo    = "info"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthUserNotFound       = "auth.user_not_found"
	KeyAuthUserExists         = "auth.user_exists"
	KeyAuthEmailNotVerified   = "auth.email_not_verified"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthLogoutSuccess      = "auth.logout_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAuthPasswordReset      = "auth.password_reset"

	// User Management
	KeyUserProfileUpdated = "user.profile_updated"
	KeyUserNotFound       = "user.not_found"
	KeyUserSuspended      = "user.suspended"

	// Applications
	KeyApplicationCreated   = "application.created"
	KeyApplicationUpdated   = "application.updated"
	KeyApplicationSubmitted = "application.submitted"
	KeyApplicationNotFound  = "application.not_found"
	KeyApplicationApproved  = "application.approved"
	KeyApplicationRejected  = "application.rejected"

	// Locks
	KeyLockAcquired      = "lock.acquired"
	KeyLockReleased      = "lock.released"
	KeyLockExtended      = "lock.extended"
	KeyLockConflict      = "lock.conflict"
	KeyLockDuplicate     = "lock.duplicate"
	KeyLockNotOwner      = "lock.not_owner"
	KeyLockNotFound      = "lock.not_found"

	// Purchases
	KeyPurchaseRecorded  = "purchase.recorded"
	KeyPurchaseDuplicate = "purchase.duplicate"
	KeyPurchaseNotFound  = "purchase.not_found"

	// Pricing
	KeyPricingUpdated       = "pricing.updated"
	KeyPricingInvalid       = "pricing.invalid"
	KeyPricingNotConfigured = "pricing.not_configured"

	// Payments
	KeyPaymentSuccess       = "payment.success"
	KeyPaymentFailed        = "payment.failed"
	KeyPaymentPending       = "payment.pending"
	KeyPaymentNotConfirmed  = "payment.not_confirmed"
	KeyPaymentInvalidAmount = "payment.invalid_amount"

	// Admin
	KeyAdminActionSuccess   = "admin.action_success"
	KeyAdminAccessDenied    = "admin.access_denied"
	KeyAdminUserSuspended   = "admin.user_suspended"
	KeyAdminUserUnsuspended = "admin.user_unsuspended"
	KeyAdminSettingsUpdated = "admin.settings_updated"

	// Validation
	KeyValidationRequired = "validation.required"
	KeyValidationInvalid  = "validation.invalid"
	KeyValidationTooShort = "validation.too_short"
	KeyValidationTooLong  = "validation.too_long"
	KeyValidationEmail    = "validation.invalid_email"
	KeyValidationPassword = "validation.invalid_password"

	// File Upload
	KeyFileUploadSuccess = "file.upload_success"
	KeyFileUploadFailed  = "file.upload_failed"
	KeyFileInvalidType   = "file.invalid_type"
	KeyFileTooLarge      = "file.too_large"

	// Verification
	KeyVerificationSuccess = "verification.success"
	KeyVerificationFailed  = "verification.failed"
	KeyVerificationInvalid = "verification.invalid_code"

	// Notifications
	KeyNotificationSent   = "notification.sent"
	KeyNotificationFailed = "notification.failed"
)
