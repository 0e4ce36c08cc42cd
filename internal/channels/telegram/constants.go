package telegram

const (
	// telegramHardLimit is Telegram's hard cap on message length. Sends
	// above it fail with "Bad Request: message is too long".
	telegramHardLimit = 4096
)
