package common

import (
	"errors"
	"regexp"
	"strings"
)

var handleRegex = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)

func ValidateHandle(handle string) error {
	handle = strings.TrimSpace(handle)
	if len(handle) < 3 || len(handle) > 50 {
		return errors.New("handle must be between 3 and 50 characters")
	}

	if !handleRegex.MatchString(handle) {
		return errors.New("handle can only contain letters, numbers, and underscores")
	}

	return nil
}

func ValidatePassword(password string) error {
	if len(password) < 6 {
		return errors.New("password must be at least 6 characters long")
	}

	if len(password) > 100 {
		return errors.New("password is too long")
	}

	return nil
}

// ValidateMessage checks an outbound message before it is dispatched.
func ValidateMessage(msg *Message) error {
	if msg.ConversationID == "" {
		return errors.New("conversation ID cannot be empty")
	}
	if msg.SenderID == "" {
		return errors.New("sender ID cannot be empty")
	}
	if msg.RecipientID == "" {
		return errors.New("recipient ID cannot be empty")
	}
	if !msg.Type.IsValid() {
		return errors.New("unknown message type")
	}
	if msg.Type == MessageTypeImage && msg.AttachmentURL == "" {
		return errors.New("image message requires an attachment URL")
	}
	if msg.Type == MessageTypeText && strings.TrimSpace(msg.Content) == "" {
		return errors.New("message content cannot be empty")
	}
	return nil
}
