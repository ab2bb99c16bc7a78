package twiml

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderGreeting(t *testing.T) {
	out, err := NewResponse().
		Say("Hello! Please speak.").
		GatherSpeech("/api/voice/process?call_sid=CA123").
		Render()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "<?xml"))
	assert.Contains(t, out, `<Say voice="alice">Hello! Please speak.</Say>`)
	assert.Contains(t, out, `<Gather input="speech" action="/api/voice/process?call_sid=CA123" method="POST" speechTimeout="auto">`)
}

func TestRenderPlayThenHangup(t *testing.T) {
	out, err := NewResponse().
		Play("https://example.com/api/voice/audio/tts_CA1_ab12cd34.wav").
		GatherSpeech("/api/voice/process?call_sid=CA1").
		Hangup().
		Render()
	require.NoError(t, err)

	playIdx := strings.Index(out, "<Play>")
	gatherIdx := strings.Index(out, "<Gather")
	hangupIdx := strings.Index(out, "<Hangup>")
	require.NotEqual(t, -1, playIdx)
	require.NotEqual(t, -1, gatherIdx)
	require.NotEqual(t, -1, hangupIdx)
	assert.Less(t, playIdx, gatherIdx)
	assert.Less(t, gatherIdx, hangupIdx)
	assert.Contains(t, out, "tts_CA1_ab12cd34.wav</Play>")
}

func TestRenderEscapesText(t *testing.T) {
	out, err := NewResponse().Say("a < b & c").Render()
	require.NoError(t, err)
	assert.Contains(t, out, "a &lt; b &amp; c")
}

func TestRenderEmptyResponse(t *testing.T) {
	out, err := NewResponse().Render()
	require.NoError(t, err)
	assert.Contains(t, out, "<Response>")
}
