package messenger

import (
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// ErrorClass tells callers how much a failed transport operation matters.
type ErrorClass int

const (
	// ErrorClassBenign covers outcomes that already match the caller's intent,
	// e.g. deleting a message that is gone or editing text to the same value.
	ErrorClassBenign ErrorClass = iota
	// ErrorClassTransient covers rate limiting, server and network errors.
	ErrorClassTransient
	// ErrorClassFatal covers configuration problems: bad token, missing rights, unknown chat.
	ErrorClassFatal
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassBenign:
		return "benign"
	case ErrorClassTransient:
		return "transient"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

var benignPatterns = []string{
	"message to delete not found",
	"message can't be deleted",
	"message to edit not found",
	"message is not modified",
	"message_id_invalid",
	"query is too old",
}

var fatalPatterns = []string{
	"unauthorized",
	"bot was kicked",
	"bot is not a member",
	"chat not found",
	"not enough rights",
	"have no rights",
	"chat_admin_required",
}

var transientPatterns = []string{
	"too many requests",
	"retry after",
	"internal server error",
	"bad gateway",
	"gateway timeout",
	"connection reset",
	"connection refused",
	"timeout",
	"eof",
}

// ClassifyError classifies a Telegram Bot API error.
func ClassifyError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}

	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == 429 || apiErr.RetryAfter > 0 || apiErr.Code >= 500:
			return ErrorClassTransient
		case apiErr.Code == 401 || apiErr.Code == 403:
			return ErrorClassFatal
		}
	}

	lower := strings.ToLower(err.Error())
	for _, p := range benignPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassBenign
		}
	}
	for _, p := range fatalPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassFatal
		}
	}
	for _, p := range transientPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassTransient
		}
	}
	return ErrorClassUnknown
}

// IsBenign reports whether err can be ignored.
func IsBenign(err error) bool {
	return err != nil && ClassifyError(err) == ErrorClassBenign
}
