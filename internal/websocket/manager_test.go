package websocket

import (
	"context"
	"encoding/json"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/skillswap-api/internal/db/memdb"
	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func identity(id int64, name string) models.Identity {
	return models.NewIdentity(models.User{ID: id, Username: name, IsActive: true})
}

func newTestManager(t *testing.T, queueSize int) (*Manager, *memdb.Store) {
	t.Helper()
	store := memdb.New()
	store.AddTrade(models.Trade{ID: 42, RequesterID: 7, ProviderID: 9, Status: models.TradeStatusPending})
	return NewManager(store, queueSize, testLogger()), store
}

func drain(sub *Subscriber) []models.Event {
	var events []models.Event
	for {
		select {
		case data, ok := <-sub.Outbound():
			if !ok {
				return events
			}
			var e models.Event
			if err := json.Unmarshal(data, &e); err == nil {
				events = append(events, e)
			}
		default:
			return events
		}
	}
}

func TestManager_RegisterJoinsPersonalRoom(t *testing.T) {
	m, _ := newTestManager(t, 8)

	sub := m.Register(identity(7, "alice"), nil)
	assert.True(t, m.IsMember(sub, models.UserRoom(7)))
	assert.Equal(t, 1, m.ConnectionCount())

	// Персональную комнату покинуть нельзя
	m.Leave(sub, models.UserRoom(7))
	assert.True(t, m.IsMember(sub, models.UserRoom(7)))
}

func TestManager_JoinTrade(t *testing.T) {
	m, store := newTestManager(t, 8)
	alice := m.Register(identity(7, "alice"), nil)
	eve := m.Register(identity(13, "eve"), nil)

	require.NoError(t, m.JoinTrade(context.Background(), alice, 42))
	assert.True(t, m.IsMember(alice, models.TradeRoom(42)))

	err := m.JoinTrade(context.Background(), eve, 42)
	assert.ErrorIs(t, err, utils.ErrForbidden)
	assert.False(t, m.IsMember(eve, models.TradeRoom(42)))

	err = m.JoinTrade(context.Background(), alice, 404)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	store.Fail = assert.AnError
	err = m.JoinTrade(context.Background(), alice, 42)
	assert.ErrorIs(t, err, utils.ErrInternal)
}

func TestManager_BroadcastExcludesAndCountsConnections(t *testing.T) {
	m, _ := newTestManager(t, 8)
	aliceWeb := m.Register(identity(7, "alice"), nil)
	alicePhone := m.Register(identity(7, "alice"), nil)
	bob := m.Register(identity(9, "bob"), nil)
	for _, sub := range []*Subscriber{aliceWeb, alicePhone, bob} {
		require.NoError(t, m.JoinTrade(context.Background(), sub, 42))
	}
	assert.Equal(t, 3, m.RoomSize(models.TradeRoom(42)))

	event, err := models.NewEvent(models.EventUserTyping, 42, nil)
	require.NoError(t, err)

	delivered := m.Broadcast(models.TradeRoom(42), event, aliceWeb.ID)
	assert.Equal(t, 2, delivered)
	assert.Empty(t, drain(aliceWeb))
	assert.Len(t, drain(alicePhone), 1)
	assert.Len(t, drain(bob), 1)

	// Оба соединения пользователя получают персональные уведомления
	assert.Equal(t, 2, m.Broadcast(models.UserRoom(7), event, uuid.Nil))
}

func TestManager_UnregisterRemovesFromAllRooms(t *testing.T) {
	m, _ := newTestManager(t, 8)
	sub := m.Register(identity(7, "alice"), nil)
	require.NoError(t, m.JoinTrade(context.Background(), sub, 42))

	m.Unregister(sub)
	m.Unregister(sub)

	assert.Zero(t, m.RoomSize(models.TradeRoom(42)))
	assert.Zero(t, m.RoomSize(models.UserRoom(7)))
	assert.Zero(t, m.ConnectionCount())

	_, ok := <-sub.Outbound()
	assert.False(t, ok)

	event, _ := models.NewEvent(models.EventConnected, 0, nil)
	assert.False(t, m.SendTo(sub, event))
	assert.Error(t, m.JoinTrade(context.Background(), sub, 42))
}

func TestManager_SlowConsumerDropped(t *testing.T) {
	m, _ := newTestManager(t, 2)

	dropped := make(chan struct{}, 1)
	slow := m.Register(identity(7, "alice"), func() { dropped <- struct{}{} })
	fast := m.Register(identity(9, "bob"), nil)
	require.NoError(t, m.JoinTrade(context.Background(), slow, 42))
	require.NoError(t, m.JoinTrade(context.Background(), fast, 42))

	event, _ := models.NewEvent(models.EventNewMessage, 42, nil)
	for i := 0; i < 3; i++ {
		m.Broadcast(models.TradeRoom(42), event, uuid.Nil)
		// Быстрый потребитель успевает читать
		drain(fast)
	}

	select {
	case <-dropped:
	default:
		t.Fatal("slow subscriber was not dropped")
	}
	assert.False(t, m.IsMember(slow, models.TradeRoom(42)))
	assert.True(t, m.IsMember(fast, models.TradeRoom(42)))

	// Уже поставленные события остаются доступны для отправки
	assert.Len(t, drain(slow), 2)
}

func TestManager_PerSenderOrder(t *testing.T) {
	m, _ := newTestManager(t, 64)
	receiver := m.Register(identity(9, "bob"), nil)
	require.NoError(t, m.JoinTrade(context.Background(), receiver, 42))

	for i := 0; i < 20; i++ {
		event, _ := models.NewEvent(models.EventNewMessage, 42, map[string]int{"seq": i})
		m.Broadcast(models.TradeRoom(42), event, uuid.Nil)
	}

	events := drain(receiver)
	require.Len(t, events, 20)
	for i, e := range events {
		var payload map[string]int
		require.NoError(t, json.Unmarshal(e.Payload, &payload))
		assert.Equal(t, i, payload["seq"])
	}
}

func TestManager_Shutdown(t *testing.T) {
	m, _ := newTestManager(t, 4)
	var closed int
	m.Register(identity(7, "alice"), func() { closed++ })
	m.Register(identity(9, "bob"), func() { closed++ })

	m.Shutdown()
	assert.Equal(t, 2, closed)
	assert.Zero(t, m.ConnectionCount())
}
