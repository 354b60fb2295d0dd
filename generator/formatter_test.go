package generator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatKeepsPreformattedText(t *testing.T) {
	text := "GM degens.\n\nWhat did you launch today?"
	assert.Equal(t, text, Format(text))
}

func TestFormatBreaksAfterShortColonPreamble(t *testing.T) {
	got := Format("Life of a crypto degen: wake up and check charts")
	assert.Equal(t, "Life of a crypto degen:\n wake up and check charts", got)
}

func TestFormatIgnoresLongColonPreamble(t *testing.T) {
	text := "This preamble is way too long to be considered short: right"
	assert.Equal(t, text, Format(text))
}

func TestFormatBreaksBeforeQuestion(t *testing.T) {
	got := Format("Your meme coin is live in seconds. When will you launch yours")
	assert.Equal(t, "Your meme coin is live in seconds.\n\nWhen will you launch yours", got)
}

func TestFormatBreaksBeforeTrailingHashtag(t *testing.T) {
	got := Format("Fair launches only on this platform #MultiversX")
	assert.Equal(t, "Fair launches only on this platform \n\n#MultiversX", got)
}

func TestFormatIgnoresHashtagInFirstHalf(t *testing.T) {
	text := "#MultiversX is where all the fair launches happen these days"
	assert.Equal(t, text, Format(text))
}

func TestFormatIdempotent(t *testing.T) {
	inputs := []string{
		"Life of a crypto degen: wake up and check charts",
		"Your meme coin is live in seconds. When will you launch yours",
		"Fair launches only on this platform #MultiversX",
	}

	for _, input := range inputs {
		once := Format(input)
		assert.Equal(t, once, Format(once))
	}
}
