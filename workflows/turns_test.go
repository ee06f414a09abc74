package workflows

import (
	"context"
	"errors"
	"strings"
	"testing"

	"postpilot/models"
	"postpilot/services"
	"postpilot/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	createCalls  int
	createUserID string
	createMsgs   []models.Message
	createdID    uuid.UUID

	appendCalls int
	appendID    uuid.UUID
	appendMsgs  []models.Message
	appendErr   error
}

func (f *fakeStore) CreateConversation(ctx context.Context, userID string, platform models.Platform, initial []models.Message) (uuid.UUID, error) {
	f.createCalls++
	f.createUserID = userID
	f.createMsgs = initial
	if f.createdID == uuid.Nil {
		f.createdID = uuid.New()
	}
	return f.createdID, nil
}

func (f *fakeStore) AppendMessages(ctx context.Context, conversationID uuid.UUID, msgs []models.Message) error {
	f.appendCalls++
	f.appendID = conversationID
	f.appendMsgs = msgs
	return f.appendErr
}

func (f *fakeStore) GetConversation(ctx context.Context, conversationID uuid.UUID) (models.Conversation, error) {
	return models.Conversation{}, store.ErrNotFound
}

func (f *fakeStore) ListConversations(ctx context.Context, userID string) ([]models.Conversation, error) {
	return nil, nil
}

type fakeGenerator struct {
	textCalls  int
	lastPrompt services.TextPrompt
	text       string
	textErr    error

	imageCalls int
	image      []byte
	imageErr   error
}

func (f *fakeGenerator) GenerateText(ctx context.Context, prompt services.TextPrompt, params services.TextParams) (string, error) {
	f.textCalls++
	f.lastPrompt = prompt
	return f.text, f.textErr
}

func (f *fakeGenerator) GenerateImage(ctx context.Context, prompt string, platform models.Platform) ([]byte, error) {
	f.imageCalls++
	return f.image, f.imageErr
}

func TestTextTurn_NewConversationSeededWithPair(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeGenerator{text: "Sam: Great idea! Try posting at 9am. It boosts"}
	wf := NewTurnWorkflows(st, gen)

	out, err := wf.TextTurn(context.Background(), TextTurnInput{
		UserID:      "user-1",
		Platform:    models.PlatformLinkedIn,
		UserMessage: "When should I post?",
		WordCount:   10,
	})
	require.NoError(t, err)

	assert.Equal(t, "Great idea! Try posting at 9am.", out.GeneratedText)
	assert.False(t, out.IsComplete)
	assert.Equal(t, st.createdID, out.ConversationID)

	require.Equal(t, 1, st.createCalls)
	assert.Equal(t, 0, st.appendCalls)
	assert.Equal(t, "user-1", st.createUserID)

	require.Len(t, st.createMsgs, 2)
	assert.Equal(t, models.SenderUser, st.createMsgs[0].Sender)
	assert.Equal(t, "When should I post?", st.createMsgs[0].Text)
	assert.Equal(t, models.SenderAssistant, st.createMsgs[1].Sender)
	assert.Equal(t, "Great idea! Try posting at 9am.", st.createMsgs[1].Text)
}

func TestTextTurn_ExistingConversationAppendsPairInOneCall(t *testing.T) {
	convID := uuid.New()
	st := &fakeStore{}
	gen := &fakeGenerator{text: "Keep it short."}
	wf := NewTurnWorkflows(st, gen)

	out, err := wf.TextTurn(context.Background(), TextTurnInput{
		UserID:         "user-1",
		Platform:       models.PlatformTwitter,
		UserMessage:    "Any tips?",
		WordCount:      10,
		ConversationID: convID,
	})
	require.NoError(t, err)

	assert.Equal(t, convID, out.ConversationID)
	assert.Equal(t, 0, st.createCalls)
	require.Equal(t, 1, st.appendCalls)
	assert.Equal(t, convID, st.appendID)
	// both turn messages travel in a single atomic append
	require.Len(t, st.appendMsgs, 2)
}

func TestTurnPairs_UserPromptAlwaysPrecedesReply(t *testing.T) {
	convID := uuid.New()
	st := &fakeStore{}
	gen := &fakeGenerator{text: "Noted.", image: []byte{0xFF, 0xD8}}
	wf := NewTurnWorkflows(st, gen)

	_, err := wf.TextTurn(context.Background(), TextTurnInput{
		UserID:      "user-1",
		Platform:    models.PlatformLinkedIn,
		UserMessage: "first question",
	})
	require.NoError(t, err)
	require.Len(t, st.createMsgs, 2)
	assert.Equal(t, models.SenderUser, st.createMsgs[0].Sender)
	assert.Equal(t, models.SenderAssistant, st.createMsgs[1].Sender)

	_, err = wf.ImageTurn(context.Background(), ImageTurnInput{
		UserID:         "user-1",
		Platform:       models.PlatformLinkedIn,
		Prompt:         "a skyline",
		ConversationID: convID,
	})
	require.NoError(t, err)
	require.Len(t, st.appendMsgs, 2)
	assert.Equal(t, models.SenderUser, st.appendMsgs[0].Sender)
	assert.Equal(t, models.SenderAssistant, st.appendMsgs[1].Sender)
}

func TestTextTurn_GenerationFailurePersistsNothing(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeGenerator{textErr: &services.UpstreamError{StatusCode: 503, Body: "busy"}}
	wf := NewTurnWorkflows(st, gen)

	_, err := wf.TextTurn(context.Background(), TextTurnInput{
		UserID:      "user-1",
		Platform:    models.PlatformFacebook,
		UserMessage: "hi",
	})

	var upstreamErr *services.UpstreamError
	require.ErrorAs(t, err, &upstreamErr)
	assert.Equal(t, 0, st.createCalls)
	assert.Equal(t, 0, st.appendCalls)
}

func TestTextTurn_DefaultsSystemMessage(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeGenerator{text: "Fine."}
	wf := NewTurnWorkflows(st, gen)

	_, err := wf.TextTurn(context.Background(), TextTurnInput{
		UserID:      "user-1",
		Platform:    models.PlatformInstagram,
		UserMessage: "hello",
		WordCount:   25,
	})
	require.NoError(t, err)

	assert.Contains(t, gen.lastPrompt.System, "Content Strategist for instagram")
	assert.Contains(t, gen.lastPrompt.System, "25 words")
}

func TestTextTurn_CallerSystemMessageWins(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeGenerator{text: "Fine."}
	wf := NewTurnWorkflows(st, gen)

	_, err := wf.TextTurn(context.Background(), TextTurnInput{
		UserID:        "user-1",
		Platform:      models.PlatformInstagram,
		SystemMessage: "custom instructions",
		UserMessage:   "hello",
	})
	require.NoError(t, err)
	assert.Equal(t, "custom instructions", gen.lastPrompt.System)
}

func TestImageTurn_EmbedsDataURIAndTagsMessages(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeGenerator{image: []byte{0xFF, 0xD8, 0xFF}}
	wf := NewTurnWorkflows(st, gen)

	out, err := wf.ImageTurn(context.Background(), ImageTurnInput{
		UserID:   "user-1",
		Platform: models.PlatformInstagram,
		Prompt:   "a sunrise",
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out.ImageDataURI, "data:image/jpeg;base64,"))
	require.Equal(t, 1, st.createCalls)

	require.Len(t, st.createMsgs, 2)
	assert.Equal(t, models.KindText, st.createMsgs[0].Kind)
	assert.Equal(t, "a sunrise", st.createMsgs[0].Text)
	assert.Equal(t, models.KindImage, st.createMsgs[1].Kind)
	assert.Equal(t, out.ImageDataURI, st.createMsgs[1].ImageURL)
}

func TestImageTurn_GenerationFailurePersistsNothing(t *testing.T) {
	st := &fakeStore{}
	gen := &fakeGenerator{imageErr: errors.New("boom")}
	wf := NewTurnWorkflows(st, gen)

	_, err := wf.ImageTurn(context.Background(), ImageTurnInput{
		UserID:   "user-1",
		Platform: models.PlatformTwitter,
		Prompt:   "x",
	})

	require.Error(t, err)
	assert.Equal(t, 0, st.createCalls)
	assert.Equal(t, 0, st.appendCalls)
}

func TestAddMessage_TagsKindFromContent(t *testing.T) {
	st := &fakeStore{}
	wf := NewTurnWorkflows(st, &fakeGenerator{})
	convID := uuid.New()

	require.NoError(t, wf.AddMessage(context.Background(), AddMessageInput{
		ConversationID: convID,
		Sender:         models.SenderUser,
		ImageURL:       "data:image/jpeg;base64,xyz",
	}))
	require.Len(t, st.appendMsgs, 1)
	assert.Equal(t, models.KindImage, st.appendMsgs[0].Kind)

	require.NoError(t, wf.AddMessage(context.Background(), AddMessageInput{
		ConversationID: convID,
		Sender:         models.SenderAssistant,
		Text:           "hello",
	}))
	require.Len(t, st.appendMsgs, 1)
	assert.Equal(t, models.KindText, st.appendMsgs[0].Kind)
	assert.Equal(t, "hello", st.appendMsgs[0].Text)
}

func TestAddMessage_MissingConversation(t *testing.T) {
	st := &fakeStore{appendErr: store.ErrNotFound}
	wf := NewTurnWorkflows(st, &fakeGenerator{})

	err := wf.AddMessage(context.Background(), AddMessageInput{
		ConversationID: uuid.New(),
		Sender:         models.SenderUser,
		Text:           "hi",
	})
	assert.True(t, errors.Is(err, store.ErrNotFound))
}
