package telegram

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"guardian-relay/internal/classifier"
	"guardian-relay/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingHandler struct {
	mu   sync.Mutex
	msgs []models.InboundMessage
}

func (h *recordingHandler) Route(_ context.Context, msg models.InboundMessage) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.msgs = append(h.msgs, msg)
	if msg.Text == "falha" {
		return errors.New("handler failed")
	}
	return nil
}

func (h *recordingHandler) received() []models.InboundMessage {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]models.InboundMessage(nil), h.msgs...)
}

func privateMessage(updateID, userID int64, text string) Update {
	return Update{UpdateID: updateID, Message: &Message{
		From: &User{ID: userID, FirstName: "Maria", LastName: "Silva", Username: "maria"},
		Chat: Chat{ID: userID, Type: "private"},
		Date: 1700000000,
		Text: text,
	}}
}

func TestPoller_RoutesMessagesAndAdvancesOffset(t *testing.T) {
	group := privateMessage(3, 44, "agressor")
	group.Message.Chat.Type = "group"

	api := &fakeBotAPI{updates: [][]Update{
		{privateMessage(1, 42, "falha"), privateMessage(2, 42, "/start"), group},
		{privateMessage(4, 43, "CADASTRO")},
	}}
	client := newTestClient(t, api)
	handler := &recordingHandler{}
	poller := NewPoller(client, handler, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- poller.Start(ctx) }()

	require.Eventually(t, func() bool { return len(handler.received()) == 3 }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("poller did not stop")
	}

	msgs := handler.received()
	assert.Equal(t, "falha", msgs[0].Text)
	assert.Equal(t, "/start", msgs[1].Text)
	assert.Equal(t, "43", msgs[2].Sender.ID)

	var offsets []string
	for _, c := range api.recorded() {
		if c.Method == "getUpdates" {
			offsets = append(offsets, c.Offset)
		}
	}
	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, []string{"0", "4"}, offsets[:2])
}

func TestToInbound(t *testing.T) {
	msg, ok := ToInbound(privateMessage(1, 42, "Há um agressor"))
	require.True(t, ok)
	assert.Equal(t, "42", msg.Sender.ID)
	assert.Equal(t, "Maria Silva", msg.Sender.DisplayName)
	assert.Equal(t, "maria", msg.Sender.Username)
	assert.Empty(t, msg.Sender.Phone)
	assert.Equal(t, "Há um agressor", msg.Text)
	assert.Equal(t, time.Unix(1700000000, 0), msg.ReceivedAt)

	empty := privateMessage(2, 42, "  ")
	_, ok = ToInbound(empty)
	assert.False(t, ok)

	_, ok = ToInbound(Update{UpdateID: 3})
	assert.False(t, ok)
}

func TestToInbound_OwnContactRequestsRegistration(t *testing.T) {
	u := privateMessage(5, 42, "")
	u.Message.Contact = &Contact{PhoneNumber: " +55 11 99999-0000 ", UserID: 42}

	msg, ok := ToInbound(u)
	require.True(t, ok)
	assert.Equal(t, "+55 11 99999-0000", msg.Sender.Phone)
	assert.True(t, classifier.IsRegistrationRequest(msg.Text))

	// 别人的联系方式不是注册申请
	other := privateMessage(6, 42, "")
	other.Message.Contact = &Contact{PhoneNumber: "+55 11 88888-0000", UserID: 77}
	_, ok = ToInbound(other)
	assert.False(t, ok)
}
