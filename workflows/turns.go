// Package workflows orchestrates chat turns: prompt construction, upstream
// generation, response refinement and atomic persistence of the turn's
// message pair.
package workflows

import (
	"context"
	"encoding/base64"
	"fmt"

	"postpilot/models"
	"postpilot/services"
	"postpilot/store"
	"postpilot/textproc"

	"github.com/google/uuid"
)

// Generator is the outbound generation client used by turns.
type Generator interface {
	GenerateText(ctx context.Context, prompt services.TextPrompt, params services.TextParams) (string, error)
	GenerateImage(ctx context.Context, prompt string, platform models.Platform) ([]byte, error)
}

// Orchestrator runs one turn end to end. Handlers depend on this interface;
// production wires the DBOS-backed DurableOrchestrator.
type Orchestrator interface {
	TextTurn(ctx context.Context, input TextTurnInput) (TextTurnOutput, error)
	ImageTurn(ctx context.Context, input ImageTurnInput) (ImageTurnOutput, error)
	AddMessage(ctx context.Context, input AddMessageInput) error
}

// TurnWorkflows holds the collaborators a turn needs.
type TurnWorkflows struct {
	store store.Store
	gen   Generator
}

// NewTurnWorkflows creates a TurnWorkflows instance.
func NewTurnWorkflows(st store.Store, gen Generator) *TurnWorkflows {
	return &TurnWorkflows{store: st, gen: gen}
}

// TextTurnInput is one user text turn.
type TextTurnInput struct {
	UserID        string
	Platform      models.Platform
	SystemMessage string
	UserMessage   string
	WordCount     int
	// ConversationID is uuid.Nil when the turn starts a new conversation.
	ConversationID uuid.UUID
}

// TextTurnOutput is the normalized result of a text turn.
type TextTurnOutput struct {
	GeneratedText  string
	ConversationID uuid.UUID
	IsComplete     bool
}

// ImageTurnInput is one user image turn.
type ImageTurnInput struct {
	UserID         string
	Platform       models.Platform
	Prompt         string
	ConversationID uuid.UUID
}

// ImageTurnOutput carries the generated image as an inline data URI.
type ImageTurnOutput struct {
	ImageDataURI   string
	ConversationID uuid.UUID
}

// AddMessageInput appends a single caller-supplied message to an existing
// conversation.
type AddMessageInput struct {
	ConversationID uuid.UUID
	Sender         models.Sender
	Text           string
	ImageURL       string
}

// TextTurn runs a text turn: generate, refine, persist the user+assistant
// pair. A generation failure aborts before anything is written.
func (w *TurnWorkflows) TextTurn(ctx context.Context, input TextTurnInput) (TextTurnOutput, error) {
	raw, err := w.generateText(ctx, input)
	if err != nil {
		return TextTurnOutput{}, err
	}

	refined := textproc.Refine(raw, input.WordCount)

	convID, err := w.persistPair(ctx, input.ConversationID, input.UserID, input.Platform, textTurnPair(input.UserMessage, refined.Text))
	if err != nil {
		return TextTurnOutput{}, err
	}

	return TextTurnOutput{
		GeneratedText:  refined.Text,
		ConversationID: convID,
		IsComplete:     refined.Complete,
	}, nil
}

// ImageTurn runs an image turn. The generated image is embedded as a data
// URI rather than uploaded to blob storage.
func (w *TurnWorkflows) ImageTurn(ctx context.Context, input ImageTurnInput) (ImageTurnOutput, error) {
	dataURI, err := w.generateImage(ctx, input)
	if err != nil {
		return ImageTurnOutput{}, err
	}

	convID, err := w.persistPair(ctx, input.ConversationID, input.UserID, input.Platform, imageTurnPair(input.Prompt, dataURI))
	if err != nil {
		return ImageTurnOutput{}, err
	}

	return ImageTurnOutput{
		ImageDataURI:   dataURI,
		ConversationID: convID,
	}, nil
}

// AddMessage appends one message to an existing conversation.
func (w *TurnWorkflows) AddMessage(ctx context.Context, input AddMessageInput) error {
	return w.store.AppendMessages(ctx, input.ConversationID, []models.Message{newSuppliedMessage(input)})
}

func (w *TurnWorkflows) generateText(ctx context.Context, input TextTurnInput) (string, error) {
	prompt := services.TextPrompt{
		System: input.SystemMessage,
		User:   input.UserMessage,
	}
	if prompt.System == "" {
		prompt.System = DefaultSystemMessage(input.Platform, input.WordCount)
	}
	return w.gen.GenerateText(ctx, prompt, services.DefaultTextParams())
}

func (w *TurnWorkflows) generateImage(ctx context.Context, input ImageTurnInput) (string, error) {
	raw, err := w.gen.GenerateImage(ctx, input.Prompt, input.Platform)
	if err != nil {
		return "", err
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(raw), nil
}

// persistPair writes a turn's user+assistant pair in a single store call so
// the turn is all-or-nothing. A nil conversation id starts a new
// conversation seeded with the pair.
func (w *TurnWorkflows) persistPair(ctx context.Context, conversationID uuid.UUID, userID string, platform models.Platform, pair []models.Message) (uuid.UUID, error) {
	if conversationID == uuid.Nil {
		id, err := w.store.CreateConversation(ctx, userID, platform, pair)
		if err != nil {
			return uuid.Nil, fmt.Errorf("failed to create conversation: %w", err)
		}
		return id, nil
	}
	if err := w.store.AppendMessages(ctx, conversationID, pair); err != nil {
		return uuid.Nil, err
	}
	return conversationID, nil
}

func textTurnPair(userText, assistantText string) []models.Message {
	return []models.Message{
		models.NewTextMessage(models.SenderUser, userText),
		models.NewTextMessage(models.SenderAssistant, assistantText),
	}
}

func imageTurnPair(userPrompt, imageDataURI string) []models.Message {
	return []models.Message{
		models.NewTextMessage(models.SenderUser, userPrompt),
		models.NewImageMessage(models.SenderAssistant, imageDataURI),
	}
}

func newSuppliedMessage(input AddMessageInput) models.Message {
	msg := models.Message{
		Sender:   input.Sender,
		Kind:     models.KindText,
		Text:     input.Text,
		ImageURL: input.ImageURL,
	}
	if input.ImageURL != "" && input.Text == "" {
		msg.Kind = models.KindImage
	}
	return msg
}

// DefaultSystemMessage is the per-platform instruction template used when
// the caller does not supply a system message.
func DefaultSystemMessage(platform models.Platform, wordCount int) string {
	if wordCount <= 0 {
		wordCount = textproc.DefaultWordCount
	}
	return fmt.Sprintf(
		"You are %s, a professional Content Strategist for %s. Provide concise, actionable advice for creating engaging posts. Use a friendly, professional tone. Limit responses to %d words.",
		models.AssistantName, platform, wordCount)
}
