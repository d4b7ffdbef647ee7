package serial

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFramer_Feed(t *testing.T) {
	tests := []struct {
		name        string
		chunks      []string
		wantLines   []string
		wantPending int
	}{
		{
			name:        "single complete line",
			chunks:      []string{"AB 12 CD 34 5\n"},
			wantLines:   []string{"AB 12 CD 34 5"},
			wantPending: 0,
		},
		{
			name:        "no newline stays buffered",
			chunks:      []string{"AB 12"},
			wantLines:   nil,
			wantPending: 5,
		},
		{
			name:        "line split across chunks",
			chunks:      []string{"AB 12", " CD 34 5\n"},
			wantLines:   []string{"AB 12 CD 34 5"},
			wantPending: 0,
		},
		{
			name:        "multiple lines in one chunk",
			chunks:      []string{"AB 12 CD 34 5\n50\n"},
			wantLines:   []string{"AB 12 CD 34 5", "50"},
			wantPending: 0,
		},
		{
			name:        "trailing fragment kept",
			chunks:      []string{"50\n70"},
			wantLines:   []string{"50"},
			wantPending: 2,
		},
		{
			name:        "empty lines preserved",
			chunks:      []string{"\n\n50\n"},
			wantLines:   []string{"", "", "50"},
			wantPending: 0,
		},
		{
			name:        "byte at a time",
			chunks:      []string{"5", "0", "\n"},
			wantLines:   []string{"50"},
			wantPending: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			framer := NewLineFramer(4096)

			var got []string
			for _, chunk := range tt.chunks {
				got = append(got, framer.Feed([]byte(chunk))...)
			}

			assert.Equal(t, tt.wantLines, got)
			assert.Equal(t, tt.wantPending, framer.Pending())
			assert.Zero(t, framer.Drops())
		})
	}
}

// Framing must not depend on where the stream is cut into chunks: any
// chunking of the same bytes yields the same lines as one single Feed.
func TestLineFramer_ChunkBoundaryInvariance(t *testing.T) {
	stream := "AB 12 CD 34 5\n50\ngarbage no match\nFF 00 AA 11 2\n125\npartial tail"

	whole := NewLineFramer(4096)
	want := whole.Feed([]byte(stream))

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 100; trial++ {
		framer := NewLineFramer(4096)
		var got []string

		rest := stream
		for len(rest) > 0 {
			n := 1 + rng.Intn(len(rest))
			got = append(got, framer.Feed([]byte(rest[:n]))...)
			rest = rest[n:]
		}

		require.Equal(t, want, got, "trial %d produced different framing", trial)
		require.Equal(t, whole.Pending(), framer.Pending())
	}
}

func TestLineFramer_OverflowDropsWholeBuffer(t *testing.T) {
	framer := NewLineFramer(16)

	// A device that never sends a newline must not grow the buffer unboundedly.
	lines := framer.Feed([]byte(strings.Repeat("x", 20)))
	assert.Nil(t, lines)
	assert.Equal(t, 0, framer.Pending())
	assert.Equal(t, 1, framer.Drops())

	// The framer keeps working after a drop.
	lines = framer.Feed([]byte("50\n"))
	assert.Equal(t, []string{"50"}, lines)
	assert.Equal(t, 1, framer.Drops())
}

func TestLineFramer_OverflowAfterExtraction(t *testing.T) {
	framer := NewLineFramer(8)

	// The complete line is framed even though the trailing fragment overflows.
	lines := framer.Feed([]byte("50\n" + strings.Repeat("y", 12)))
	assert.Equal(t, []string{"50"}, lines)
	assert.Equal(t, 0, framer.Pending())
	assert.Equal(t, 1, framer.Drops())
}
