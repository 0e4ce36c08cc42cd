package store

import "fmt"

// MaxUserIDLength caps user identifier strings. Telegram user IDs are
// short decimals, but the queue accepts arbitrary callers.
const MaxUserIDLength = 255

// ValidateUserID checks that a user identifier is usable as a queue key.
func ValidateUserID(id string) error {
	if id == "" {
		return fmt.Errorf("user identifier is empty")
	}
	if len(id) > MaxUserIDLength {
		return fmt.Errorf("user identifier too long: %d chars (max %d)", len(id), MaxUserIDLength)
	}
	return nil
}
