package chat

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/skillswap-api/internal/db/memdb"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

type sentEvent struct {
	room    string
	event   models.Event
	exclude uuid.UUID
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []sentEvent
}

func (n *recordingNotifier) Broadcast(room string, event models.Event, exclude uuid.UUID) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, sentEvent{room: room, event: event, exclude: exclude})
	return 1
}

func (n *recordingNotifier) sent() []sentEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]sentEvent(nil), n.events...)
}

const (
	aliceID int64 = 7
	bobID   int64 = 9
	eveID   int64 = 13
	tradeID int64 = 42
)

func identity(id int64, name string) models.Identity {
	return models.NewIdentity(models.User{ID: id, Username: name, IsActive: true})
}

func setup(t *testing.T) (*ChatService, *memdb.Store, *recordingNotifier) {
	t.Helper()
	store := memdb.New()
	store.AddUser(models.User{ID: aliceID, Username: "alice", IsActive: true})
	store.AddUser(models.User{ID: bobID, Username: "bob", IsActive: true})
	store.AddUser(models.User{ID: eveID, Username: "eve", IsActive: true})
	store.AddTrade(models.Trade{ID: tradeID, RequesterID: aliceID, ProviderID: bobID, Status: models.TradeStatusAccepted})

	logger := logrus.New()
	logger.SetOutput(io.Discard)
	notifier := &recordingNotifier{}
	return NewChatService(store, notifier, logger), store, notifier
}

func TestSendMessage_ReceiverIsCounterpart(t *testing.T) {
	svc, store, notifier := setup(t)

	msg, err := svc.SendMessage(context.Background(), identity(aliceID, "alice"), tradeID, "hi", models.MessageTypeText)
	require.NoError(t, err)
	assert.Equal(t, bobID, msg.ReceiverID)
	assert.False(t, msg.IsRead)

	stored := store.Messages()
	require.Len(t, stored, 1)
	assert.Equal(t, bobID, stored[0].ReceiverID)

	sent := notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, models.TradeRoom(tradeID), sent[0].room)
	assert.Equal(t, models.EventNewMessage, sent[0].event.Type)
	assert.Equal(t, models.UserRoom(bobID), sent[1].room)
	assert.Equal(t, models.EventMessagePreview, sent[1].event.Type)

	var preview models.MessagePreview
	require.NoError(t, json.Unmarshal(sent[1].event.Payload, &preview))
	assert.Equal(t, "hi", preview.Preview)
	assert.Equal(t, msg.ID, preview.MessageID)
}

func TestSendMessage_Validation(t *testing.T) {
	tests := []struct {
		name    string
		sender  int64
		trade   int64
		content string
		msgType models.MessageType
		want    error
	}{
		{"empty", aliceID, tradeID, "   ", models.MessageTypeText, utils.ErrValidation},
		{"too long", aliceID, tradeID, strings.Repeat("я", MaxContentLength+1), models.MessageTypeText, utils.ErrValidation},
		{"unknown type", aliceID, tradeID, "hi", "sticker", utils.ErrValidation},
		{"system from client", aliceID, tradeID, "hi", models.MessageTypeSystem, utils.ErrValidation},
		{"missing trade", aliceID, 404, "hi", models.MessageTypeText, utils.ErrNotFound},
		{"outsider", eveID, tradeID, "hi", models.MessageTypeText, utils.ErrUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, store, notifier := setup(t)

			_, err := svc.SendMessage(context.Background(), identity(tt.sender, "x"), tt.trade, tt.content, tt.msgType)
			assert.ErrorIs(t, err, tt.want)
			assert.Empty(t, store.Messages())
			assert.Empty(t, notifier.sent())
		})
	}
}

func TestSendMessage_MaxLengthAccepted(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.SendMessage(context.Background(), identity(aliceID, "alice"), tradeID, strings.Repeat("я", MaxContentLength), "")
	assert.NoError(t, err)
}

func TestPreview(t *testing.T) {
	long := strings.Repeat("ж", 80)
	assert.Equal(t, strings.Repeat("ж", PreviewLength), Preview(&models.Message{Content: long}))
	assert.Equal(t, "short", Preview(&models.Message{Content: "short"}))
}

func TestMarkRead_Idempotent(t *testing.T) {
	svc, _, notifier := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.SendMessage(ctx, identity(aliceID, "alice"), tradeID, "ping", models.MessageTypeText)
		require.NoError(t, err)
	}
	_, err := svc.SendMessage(ctx, identity(bobID, "bob"), tradeID, "pong", models.MessageTypeText)
	require.NoError(t, err)

	conn := uuid.New()
	changed, err := svc.MarkRead(ctx, identity(bobID, "bob"), tradeID, conn)
	require.NoError(t, err)
	assert.Equal(t, int64(3), changed)

	sent := notifier.sent()
	last := sent[len(sent)-1]
	assert.Equal(t, models.EventMessagesRead, last.event.Type)
	assert.Equal(t, conn, last.exclude)

	before := len(sent)
	changed, err = svc.MarkRead(ctx, identity(bobID, "bob"), tradeID, conn)
	require.NoError(t, err)
	assert.Zero(t, changed)
	assert.Len(t, notifier.sent(), before)
}

func TestMarkRead_Outsider(t *testing.T) {
	svc, _, _ := setup(t)

	_, err := svc.MarkRead(context.Background(), identity(eveID, "eve"), tradeID, uuid.Nil)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)
}

func TestTyping_ExcludesSender(t *testing.T) {
	svc, store, notifier := setup(t)
	conn := uuid.New()

	svc.Typing(identity(aliceID, "alice"), tradeID, conn, true)
	svc.Typing(identity(aliceID, "alice"), tradeID, conn, false)

	sent := notifier.sent()
	require.Len(t, sent, 2)
	assert.Equal(t, models.EventUserTyping, sent[0].event.Type)
	assert.Equal(t, models.EventUserStoppedTyping, sent[1].event.Type)
	assert.Equal(t, conn, sent[0].exclude)
	assert.Empty(t, store.Messages())
}

func TestHistory(t *testing.T) {
	svc, _, _ := setup(t)
	ctx := context.Background()

	var ids []int64
	for _, text := range []string{"one", "two", "three"} {
		msg, err := svc.SendMessage(ctx, identity(aliceID, "alice"), tradeID, text, models.MessageTypeText)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	messages, err := svc.History(ctx, identity(bobID, "bob"), tradeID, 0, 2)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, "three", messages[0].Content)
	assert.Equal(t, "two", messages[1].Content)

	older, err := svc.History(ctx, identity(bobID, "bob"), tradeID, ids[1], 0)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Content)
	require.NotNil(t, older[0].Sender)
	assert.Equal(t, "alice", older[0].Sender.Username)

	_, err = svc.History(ctx, identity(eveID, "eve"), tradeID, 0, 10)
	assert.ErrorIs(t, err, utils.ErrUnauthorized)
}
