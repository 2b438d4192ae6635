package stream

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewEnvelope(t *testing.T) {
	env, err := NewEnvelope(EventPriceUpdate, map[string]string{"symbol": "BTCUSDT"})
	require.NoError(t, err)

	assert.Equal(t, EventPriceUpdate, env.Type)
	assert.JSONEq(t, `{"symbol":"BTCUSDT"}`, string(env.Data))

	ts, err := time.Parse(time.RFC3339, env.Timestamp)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), ts, 5*time.Second)
}

func TestNewEnvelope_NilPayload(t *testing.T) {
	env, err := NewEnvelope(EventHealthCheck, nil)
	require.NoError(t, err)

	assert.Equal(t, EventHealthCheck, env.Type)
	assert.Nil(t, env.Data)
}

func TestNewEnvelope_UnmarshalablePayload(t *testing.T) {
	_, err := NewEnvelope(EventPriceUpdate, func() {})
	assert.Error(t, err)
}

func TestEnvelope_EncodeDecodeRoundTrip(t *testing.T) {
	env, err := NewEnvelope(EventTradeExecution, map[string]interface{}{
		"trade_id": "tr-1",
		"amount":   250.5,
	})
	require.NoError(t, err)

	raw, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(raw)
	require.NoError(t, err)
	assert.Equal(t, env.Type, decoded.Type)
	assert.Equal(t, env.Timestamp, decoded.Timestamp)
	assert.JSONEq(t, string(env.Data), string(decoded.Data))
}

func TestDecodeEnvelope(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid frame",
			raw:  `{"type":"price_update","data":{"symbol":"BTCUSDT","price":61250.5},"timestamp":"2026-08-25T09:30:00Z"}`,
		},
		{
			name: "no timestamp",
			raw:  `{"type":"system_alert","data":{"level":"warning","message":"x"}}`,
		},
		{
			name: "no data",
			raw:  `{"type":"health_check"}`,
		},
		{
			name: "unknown kind still decodes",
			raw:  `{"type":"totally_new_thing","data":{}}`,
		},
		{
			name:    "not json",
			raw:     `{nope`,
			wantErr: true,
		},
		{
			name:    "json but not an object",
			raw:     `[1,2,3]`,
			wantErr: true,
		},
		{
			name:    "missing type field",
			raw:     `{"data":{"symbol":"BTCUSDT"}}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := DecodeEnvelope([]byte(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrMalformed))
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, env.Type)
		})
	}
}

func TestEventType_IsValid(t *testing.T) {
	valid := []EventType{
		EventPriceUpdate, EventMarketData, EventTradeExecution, EventTaskStatus,
		EventSystemAlert, EventPortfolioUpdate, EventAIRecommendation, EventHealthCheck,
	}
	for _, kind := range valid {
		assert.True(t, kind.IsValid(), "kind %s", kind)
	}

	assert.False(t, EventType("").IsValid())
	assert.False(t, EventType("price-update").IsValid())
	assert.False(t, EventType("PRICE_UPDATE").IsValid())
}

func TestReconnectError_Unwraps(t *testing.T) {
	err := ReconnectError{Attempts: 10}
	assert.True(t, errors.Is(err, ErrReconnectExhausted))
	assert.Contains(t, err.Error(), "10")
}

func TestConnectError_Unwraps(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	err := ConnectError{URL: "ws://bot.test/ws", Err: cause}
	assert.True(t, errors.Is(err, cause))
	assert.Contains(t, err.Error(), "ws://bot.test/ws")
}
