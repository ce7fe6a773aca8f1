package websocket

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/skillswap-api/internal/models"
	"github.com/rajivgeraev/skillswap-api/internal/utils"
)

func TestDecodeCommand(t *testing.T) {
	tests := []struct {
		name  string
		frame string
		want  Command
	}{
		{"join", `{"type":"join_trade","request_id":"r1","payload":{"trade_id":42}}`, JoinTrade{TradeID: 42}},
		{"leave", `{"type":"leave_trade","payload":{"trade_id":42}}`, LeaveTrade{TradeID: 42}},
		{"typing start", `{"type":"typing_start","payload":{"trade_id":42}}`, Typing{TradeID: 42, Started: true}},
		{"typing stop", `{"type":"typing_stop","payload":{"trade_id":42}}`, Typing{TradeID: 42}},
		{"send", `{"type":"send_message","payload":{"trade_id":42,"content":"hi","message_type":"text"}}`,
			SendMessage{TradeID: 42, Content: "hi", MessageType: models.MessageTypeText}},
		{"status", `{"type":"update_trade_status","payload":{"trade_id":42,"status":"accepted","notes":"ok"}}`,
			UpdateTradeStatus{TradeID: 42, Status: models.TradeStatusAccepted, Notes: "ok"}},
		{"read", `{"type":"mark_messages_read","payload":{"trade_id":42}}`, MarkMessagesRead{TradeID: 42}},
		{"auth", `{"type":"authenticate","payload":{"token":"abc"}}`, Authenticate{Token: "abc"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, _, err := DecodeCommand([]byte(tt.frame))
			require.NoError(t, err)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestDecodeCommand_Errors(t *testing.T) {
	tests := []struct {
		name      string
		frame     string
		requestID string
	}{
		{"not json", `hello`, ""},
		{"unknown", `{"type":"drop_tables","request_id":"r2","payload":{}}`, "r2"},
		{"no payload", `{"type":"join_trade","request_id":"r3"}`, "r3"},
		{"missing trade", `{"type":"join_trade","request_id":"r4","payload":{}}`, "r4"},
		{"negative trade", `{"type":"send_message","payload":{"trade_id":-1,"content":"x"}}`, ""},
		{"wrong type", `{"type":"join_trade","payload":{"trade_id":"42"}}`, ""},
		{"empty token", `{"type":"authenticate","payload":{"token":""}}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, requestID, err := DecodeCommand([]byte(tt.frame))
			assert.ErrorIs(t, err, utils.ErrValidation)
			assert.Equal(t, tt.requestID, requestID)
		})
	}
}
