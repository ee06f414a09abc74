package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AssistantName is the persona the upstream model speaks as. It is used both
// as the prompt cue sent upstream and as the marker stripped from raw output.
const AssistantName = "Sam"

// Platform identifies the social network a post is written for.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
	PlatformInstagram Platform = "instagram"
)

// ParsePlatform parses a platform tag case-insensitively.
func ParsePlatform(s string) (Platform, error) {
	switch Platform(strings.ToLower(strings.TrimSpace(s))) {
	case PlatformLinkedIn:
		return PlatformLinkedIn, nil
	case PlatformTwitter:
		return PlatformTwitter, nil
	case PlatformFacebook:
		return PlatformFacebook, nil
	case PlatformInstagram:
		return PlatformInstagram, nil
	}
	return "", fmt.Errorf("unknown platform %q", s)
}

// Sender is the role that authored a message.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ParseSender parses a sender role.
func ParseSender(s string) (Sender, error) {
	switch Sender(s) {
	case SenderUser:
		return SenderUser, nil
	case SenderAssistant:
		return SenderAssistant, nil
	}
	return "", fmt.Errorf("unknown sender %q", s)
}

// MessageKind tags a message as carrying text or an image reference.
type MessageKind string

const (
	KindText  MessageKind = "text"
	KindImage MessageKind = "image"
)

// Message is one entry in a conversation. Messages are immutable once
// appended; ID and CreatedAt are assigned by the store at append time.
type Message struct {
	ID             uuid.UUID   `json:"messageId"`
	ConversationID uuid.UUID   `json:"-"`
	Sender         Sender      `json:"sender"`
	Kind           MessageKind `json:"kind"`
	Text           string      `json:"text,omitempty"`
	ImageURL       string      `json:"imageURL,omitempty"`
	CreatedAt      time.Time   `json:"timestamp"`
}

// NewTextMessage builds an unsaved text message.
func NewTextMessage(sender Sender, text string) Message {
	return Message{Sender: sender, Kind: KindText, Text: text}
}

// NewImageMessage builds an unsaved image message.
func NewImageMessage(sender Sender, imageURL string) Message {
	return Message{Sender: sender, Kind: KindImage, ImageURL: imageURL}
}

// Conversation is an ordered sequence of messages owned by one user.
// It is only ever mutated by appending messages.
type Conversation struct {
	ID          uuid.UUID `json:"id"`
	UserID      string    `json:"userId"`
	Platform    Platform  `json:"platform"`
	Messages    []Message `json:"messages,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// GenerateTextRequest is the request body for POST /generate-text.
// SystemMessage is optional; when absent the per-platform instruction
// template is used.
type GenerateTextRequest struct {
	SystemMessage  string `json:"systemMessage"`
	UserMessage    string `json:"userMessage" binding:"required"`
	Platform       string `json:"platform" binding:"required"`
	ConversationID string `json:"conversationId"`
	WordCount      int    `json:"wordCount"`
}

// GenerateTextResponse is the success body for POST /generate-text.
type GenerateTextResponse struct {
	GeneratedText  string    `json:"generated_text"`
	ConversationID uuid.UUID `json:"conversationId"`
	IsComplete     bool      `json:"isComplete"`
}

// GenerateImageRequest is the request body for POST /generate-image.
type GenerateImageRequest struct {
	Prompt         string `json:"prompt" binding:"required"`
	Platform       string `json:"platform" binding:"required"`
	ConversationID string `json:"conversationId"`
}

// GenerateImageResponse is the success body for POST /generate-image.
type GenerateImageResponse struct {
	GeneratedImage string    `json:"generated_image"`
	ConversationID uuid.UUID `json:"conversationId"`
}

// AddMessageBody is the message payload of an add-message request.
type AddMessageBody struct {
	Sender   string `json:"sender" binding:"required"`
	Text     string `json:"text"`
	ImageURL string `json:"imageURL"`
}

// AddMessageRequest is the request body for POST /add-message.
type AddMessageRequest struct {
	ConversationID string         `json:"conversationId" binding:"required"`
	Message        AddMessageBody `json:"message" binding:"required"`
}
