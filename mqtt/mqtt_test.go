package mqtt

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type message struct {
	topic   string
	payload []byte
}

func (m message) Duplicate() bool   { return false }
func (m message) Qos() byte         { return 0 }
func (m message) Retained() bool    { return false }
func (m message) Topic() string     { return m.topic }
func (m message) MessageID() uint16 { return 0 }
func (m message) Payload() []byte   { return m.payload }
func (m message) Ack()              {}

func TestParseSet(t *testing.T) {
	prefix := TopicPrefix("panel1")
	tests := []struct {
		topic   string
		payload string
		name    string
		pos     int
		ok      bool
		wantErr bool
	}{
		{"ifpanel/panel1/encoder/wheel/set", "42", "wheel", 42, true, false},
		{"ifpanel/panel1/encoder/wheel/set", " -7\n", "wheel", -7, true, false},
		{"ifpanel/panel1/encoder/wheel/set", "left", "wheel", 0, true, true},
		{"ifpanel/panel1/encoder/wheel", "1", "", 0, false, false},
		{"ifpanel/panel2/encoder/wheel/set", "1", "", 0, false, false},
		{"ifpanel/panel1/encoder//set", "1", "", 0, false, false},
		{"ifpanel/panel1/encoder/a/b/set", "1", "", 0, false, false},
	}
	for _, tt := range tests {
		name, pos, ok, err := ParseSet(prefix, tt.topic, []byte(tt.payload))
		assert.Equal(t, tt.ok, ok, tt.topic)
		assert.Equal(t, tt.name, name, tt.topic)
		assert.Equal(t, tt.pos, pos, tt.topic)
		if tt.wantErr {
			assert.Error(t, err, tt.topic)
		} else {
			assert.NoError(t, err, tt.topic)
		}
	}
}

func TestDisabledClient(t *testing.T) {
	connected := false
	c, err := New(Config{}, "panel1", Handlers{OnConnect: func() { connected = true }})
	require.NoError(t, err)
	assert.False(t, c.IsEnabled())

	require.NoError(t, c.Connect())
	assert.True(t, connected)

	c.ButtonDown("ok")
	c.ButtonUp("ok", time.Second)
	c.Turn("wheel", 1, 1)
	c.Ping()
	assert.NoError(t, c.SubscribeEncoder("wheel"))
	c.Disconnect()
}

func TestHandleMessageSetsPosition(t *testing.T) {
	type set struct {
		name string
		pos  int
	}
	var got []set
	c, err := New(Config{}, "panel1", Handlers{OnSetPosition: func(name string, pos int) {
		got = append(got, set{name, pos})
	}})
	require.NoError(t, err)

	c.handleMessage(nil, message{"ifpanel/panel1/encoder/wheel/set", []byte("12")})
	c.handleMessage(nil, message{"ifpanel/panel1/encoder/wheel/set", []byte("x")})
	c.handleMessage(nil, message{"ifpanel/panel1/other", []byte("3")})
	assert.Equal(t, []set{{"wheel", 12}}, got)
}

func TestTLSConfigMissingCA(t *testing.T) {
	_, err := New(Config{Host: "broker", CACert: filepath.Join(t.TempDir(), "none.pem")}, "panel1", Handlers{})
	assert.Error(t, err)
}
