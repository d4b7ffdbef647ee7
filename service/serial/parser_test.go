package serial

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParser_TagThenAmount(t *testing.T) {
	parser := NewParser(testLogger())
	require.Equal(t, StateAwaitingTag, parser.State())

	_, resolved := parser.HandleLine("AB 12 CD 34 5")
	assert.False(t, resolved)
	assert.Equal(t, StateAwaitingAmount, parser.State())
	assert.Equal(t, "AB 12 CD 34 5", parser.PendingTag())

	req, resolved := parser.HandleLine("50")
	require.True(t, resolved)
	assert.Equal(t, "AB 12 CD 34 5", req.TagID)
	assert.Equal(t, int64(50), req.Amount)

	// Back to the initial state, pending tag cleared.
	assert.Equal(t, StateAwaitingTag, parser.State())
	assert.Empty(t, parser.PendingTag())
}

func TestParser_DiscardsNonMatchingLines(t *testing.T) {
	tests := []struct {
		name  string
		lines []string // all discarded
		state State
	}{
		{
			name:  "garbage while awaiting tag",
			lines: []string{"", "boot ok", "!!", "zz zz zz zz z"},
			state: StateAwaitingTag,
		},
		{
			name:  "short hex run while awaiting tag",
			lines: []string{"AB 12"},
			state: StateAwaitingTag,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(testLogger())
			for _, line := range tt.lines {
				_, resolved := parser.HandleLine(line)
				assert.False(t, resolved)
				assert.Equal(t, tt.state, parser.State())
			}
		})
	}
}

// A digit-free tag line arriving while an amount is expected is discarded
// and must leave the pending tag and the state untouched.
func TestParser_AwaitingAmountKeepsPendingTag(t *testing.T) {
	parser := NewParser(testLogger())

	_, resolved := parser.HandleLine("AB CD EF AB C")
	require.False(t, resolved)
	require.Equal(t, StateAwaitingAmount, parser.State())

	_, resolved = parser.HandleLine("no digits here")
	assert.False(t, resolved)
	assert.Equal(t, StateAwaitingAmount, parser.State())
	assert.Equal(t, "AB CD EF AB C", parser.PendingTag())

	req, resolved := parser.HandleLine("125")
	require.True(t, resolved)
	assert.Equal(t, "AB CD EF AB C", req.TagID)
	assert.Equal(t, int64(125), req.Amount)
}

func TestParser_PatternExtraction(t *testing.T) {
	tests := []struct {
		name       string
		tagLine    string
		amountLine string
		wantTag    string
		wantAmount int64
	}{
		{
			name:       "tag embedded in longer line",
			tagLine:    "UID: AB 12 CD 34 5 scanned",
			amountLine: "50",
			wantTag:    "AB 12 CD 34 5",
			wantAmount: 50,
		},
		{
			name:       "amount embedded in surrounding text",
			tagLine:    "AB 12 CD 34 5",
			amountLine: "Monto: 230 Q",
			wantTag:    "AB 12 CD 34 5",
			wantAmount: 230,
		},
		{
			name:       "first digit run wins",
			tagLine:    "AB 12 CD 34 5",
			amountLine: "12 then 99",
			wantTag:    "AB 12 CD 34 5",
			wantAmount: 12,
		},
		{
			name:       "zero amount is valid",
			tagLine:    "AB 12 CD 34 5",
			amountLine: "0",
			wantTag:    "AB 12 CD 34 5",
			wantAmount: 0,
		},
		{
			name:       "lowercase hex tag",
			tagLine:    "ab 12 cd 34 5",
			amountLine: "7",
			wantTag:    "ab 12 cd 34 5",
			wantAmount: 7,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewParser(testLogger())

			_, resolved := parser.HandleLine(tt.tagLine)
			require.False(t, resolved)
			require.Equal(t, StateAwaitingAmount, parser.State())

			req, resolved := parser.HandleLine(tt.amountLine)
			require.True(t, resolved)
			assert.Equal(t, tt.wantTag, req.TagID)
			assert.Equal(t, tt.wantAmount, req.Amount)
		})
	}
}

func TestParser_AmountOutOfRange(t *testing.T) {
	parser := NewParser(testLogger())

	parser.HandleLine("AB 12 CD 34 5")
	_, resolved := parser.HandleLine("99999999999999999999999999")
	assert.False(t, resolved)
	assert.Equal(t, StateAwaitingAmount, parser.State())

	// A sane amount still resolves afterwards.
	req, resolved := parser.HandleLine("10")
	require.True(t, resolved)
	assert.Equal(t, int64(10), req.Amount)
}

func TestParser_Reset(t *testing.T) {
	parser := NewParser(testLogger())

	parser.HandleLine("AB 12 CD 34 5")
	require.Equal(t, StateAwaitingAmount, parser.State())

	parser.Reset()
	assert.Equal(t, StateAwaitingTag, parser.State())
	assert.Empty(t, parser.PendingTag())
}
