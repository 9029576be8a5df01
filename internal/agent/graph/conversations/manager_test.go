package conversations

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/curiopass/support-agent/internal/agent/model"
)

// memoryRepo is an in-process ConversationRepository for tests.
type memoryRepo struct {
	states map[string]*model.ConversationState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{states: map[string]*model.ConversationState{}}
}

func (m *memoryRepo) state(conversationID string) *model.ConversationState {
	st, ok := m.states[conversationID]
	if !ok {
		st = &model.ConversationState{ConversationID: conversationID, Scratch: map[string]string{}}
		m.states[conversationID] = st
	}
	return st
}

func (m *memoryRepo) AppendTurn(_ context.Context, conversationID string, turn model.Turn) error {
	st := m.state(conversationID)
	st.Turns = append(st.Turns, turn)
	return nil
}

func (m *memoryRepo) Load(_ context.Context, conversationID string) (*model.ConversationState, error) {
	st := m.state(conversationID)
	copied := *st
	copied.Turns = append([]model.Turn(nil), st.Turns...)
	copied.Scratch = map[string]string{}
	for k, v := range st.Scratch {
		copied.Scratch[k] = v
	}
	return &copied, nil
}

func (m *memoryRepo) SetScratch(_ context.Context, conversationID, field, value string) error {
	m.state(conversationID).Scratch[field] = value
	return nil
}

func (m *memoryRepo) TurnCount(_ context.Context, conversationID string) (int, error) {
	return len(m.state(conversationID).Turns), nil
}

var _ model.ConversationRepository = (*memoryRepo)(nil)

func newTestManager(repo model.ConversationRepository, maxTurns int) *TurnManager {
	cfg := model.ConversationConfig{}
	cfg.Classifier.MaxTurns = maxTurns
	return NewTurnManager(repo, cfg)
}

func TestCompleteTurnAppendsInOrder(t *testing.T) {
	repo := newMemoryRepo()
	tm := newTestManager(repo, 5)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := tm.CompleteTurn(ctx, "conv-1", model.Turn{
			UserText: fmt.Sprintf("message %d", i),
			Intent:   model.IntentKnowledge,
			Response: fmt.Sprintf("reply %d", i),
		})
		require.NoError(t, err)
	}

	st, err := tm.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, st.Turns, 3)
	for i, turn := range st.Turns {
		require.Equal(t, fmt.Sprintf("message %d", i), turn.UserText)
		require.False(t, turn.CreatedAt.IsZero())
	}
}

func TestBindUserAndTicket(t *testing.T) {
	repo := newMemoryRepo()
	tm := newTestManager(repo, 5)
	ctx := context.Background()

	require.NoError(t, tm.BindUser(ctx, "conv-1", "user-7"))
	require.NoError(t, tm.BindTicket(ctx, "conv-1", "tkt-1"))

	st, err := tm.Load(ctx, "conv-1")
	require.NoError(t, err)
	require.Equal(t, "user-7", st.UserID())
	require.Equal(t, "tkt-1", st.TicketID())
}

func TestBuildClassifierContext(t *testing.T) {
	tm := newTestManager(newMemoryRepo(), 5)

	state := &model.ConversationState{
		Turns: []model.Turn{
			{UserText: "hi", Response: "hello"},
			{UserText: "what is my quota"},
		},
	}
	rendered := tm.BuildClassifierContext(state, "book me a spot")

	require.Contains(t, rendered, "<conversation_context>")
	require.Contains(t, rendered, "UserMessage(hi)")
	require.Contains(t, rendered, "AssistantMessage(hello)")
	require.Contains(t, rendered, "UserMessage(what is my quota)")
	require.Contains(t, rendered, "<current_message_to_classify>")
	require.Contains(t, rendered, "UserMessage(book me a spot)")
}

func TestBuildClassifierContextTrimsToRecentTurns(t *testing.T) {
	tm := newTestManager(newMemoryRepo(), 2)

	state := &model.ConversationState{}
	for i := 0; i < 5; i++ {
		state.Turns = append(state.Turns, model.Turn{UserText: fmt.Sprintf("turn %d", i)})
	}
	rendered := tm.BuildClassifierContext(state, "now")

	require.NotContains(t, rendered, "turn 2")
	require.Contains(t, rendered, "turn 3")
	require.Contains(t, rendered, "turn 4")
}

func TestBuildClassifierContextEmptyHistory(t *testing.T) {
	tm := newTestManager(newMemoryRepo(), 5)

	rendered := tm.BuildClassifierContext(&model.ConversationState{}, "first message")
	require.Contains(t, rendered, "UserMessage(first message)")
}
