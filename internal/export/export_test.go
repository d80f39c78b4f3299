package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smartstudy/internal/extract"
	"smartstudy/internal/models"
)

func TestCleanText(t *testing.T) {
	tests := []struct{ in, want string }{
		{"  hello   world ", "hello world"},
		{"👋 Hey!\n\nI'm   SmartStudy", "Hey! I'm SmartStudy"},
		{"café\tau lait", "caf au lait"},
		{"📚", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CleanText(tt.in), "CleanText(%q)", tt.in)
	}
}

func TestTranscript(t *testing.T) {
	msgs := []models.ChatMessage{
		{Sender: models.SenderBot, Text: "👋 Hey! I'm SmartStudy Bot."},
		{Sender: models.SenderUser, Text: "What is\nosmosis?"},
		{Sender: models.SenderBot, Text: "Water   moving."},
	}
	want := "Bot: Hey! I'm SmartStudy Bot.\n\nYou: What is osmosis?\n\nBot: Water moving."
	assert.Equal(t, want, Transcript(msgs))
	assert.Equal(t, "", Transcript(nil))
}

func TestTranscriptPDF_Paginates(t *testing.T) {
	short, err := TranscriptPDF([]models.ChatMessage{{Sender: models.SenderUser, Text: "hi"}})
	require.NoError(t, err)
	n, err := extract.PageCount(short)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var msgs []models.ChatMessage
	for i := 0; i < 80; i++ {
		msgs = append(msgs, models.ChatMessage{Sender: models.SenderBot, Text: strings.Repeat("mitochondria ", 20)})
	}
	long, err := TranscriptPDF(msgs)
	require.NoError(t, err)
	n, err = extract.PageCount(long)
	require.NoError(t, err)
	assert.Greater(t, n, 1)
}

func TestSummaryPDF(t *testing.T) {
	data, err := SummaryPDF("1. Cells\n2. Tissues — organs")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), "%PDF-"))

	long, err := SummaryPDF(strings.Repeat("A numbered point about photosynthesis.\n", 40))
	require.NoError(t, err)
	n, err := extract.PageCount(long)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSummaryPDF_NonLatinText(t *testing.T) {
	for _, text := range []string{
		"Photosynthesis “converts” light — energy… into sugar",
		"光合作用 converts light into chemical energy",
		strings.Repeat("Élan — naïve café “quotes” ", 30),
	} {
		var data []byte
		var err error
		require.NotPanics(t, func() { data, err = SummaryPDF(text) })
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(string(data), "%PDF-"))
	}
}
