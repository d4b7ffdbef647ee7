package bridge

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/db"
)

// scriptedDevice replays a fixed byte stream in the given chunks, then EOF.
type scriptedDevice struct {
	mu     sync.Mutex
	chunks [][]byte
}

func newScriptedDevice(chunks ...string) *scriptedDevice {
	d := &scriptedDevice{}
	for _, c := range chunks {
		d.chunks = append(d.chunks, []byte(c))
	}
	return d
}

func (d *scriptedDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.chunks) == 0 {
		return 0, io.EOF
	}
	chunk := d.chunks[0]
	n := copy(p, chunk)
	if n < len(chunk) {
		d.chunks[0] = chunk[n:]
	} else {
		d.chunks = d.chunks[1:]
	}
	return n, nil
}

func runPipeline(t *testing.T, store Store, device io.Reader, replies io.Writer) {
	t.Helper()

	processor := NewProcessor(store, nil, nil, testLogger())
	responder := NewResponder(replies, nil, testLogger())
	pipeline := NewPipeline(device, processor, responder, 4096, 64, nil, testLogger())

	require.NoError(t, pipeline.Run(context.Background()))
}

// The end-to-end contract: a tag line and an amount line debit the account,
// append one movement, and send the success reply; the follow-up charge that
// exceeds the remaining balance is rejected without touching the balance.
func TestPipeline_EndToEnd(t *testing.T) {
	store := newFakeStore()
	store.addAccount("AB 12 CD 34 5", "Maria", "Lopez", 100)

	device := newScriptedDevice(
		"AB 12 CD 34 5\n",
		"50\n",
		"AB 12 CD 34 5\n",
		"70\n",
	)
	var replies strings.Builder

	runPipeline(t, store, device, &replies)

	assert.Equal(t, int64(50), store.balance(t, "AB 12 CD 34 5"))

	movements := store.recorded()
	require.Len(t, movements, 2)
	assert.Equal(t, db.MovementDebitSuccess, movements[0].Kind)
	assert.Equal(t, int64(50), movements[0].Amount)
	assert.Equal(t, db.MovementInsufficientFunds, movements[1].Kind)
	assert.Equal(t, int64(70), movements[1].Amount)

	assert.Equal(t, "APPROVED\nINSUFFICIENT FUNDS\n", replies.String())
}

// Chunk boundaries in the byte stream must not change the outcome.
func TestPipeline_FragmentedStream(t *testing.T) {
	store := newFakeStore()
	store.addAccount("AB 12 CD 34 5", "Maria", "Lopez", 100)

	device := newScriptedDevice(
		"AB 1", "2 CD", " 34 5", "\n5", "0\n",
	)
	var replies strings.Builder

	runPipeline(t, store, device, &replies)

	assert.Equal(t, int64(50), store.balance(t, "AB 12 CD 34 5"))
	assert.Equal(t, "APPROVED\n", replies.String())
}

func TestPipeline_UnknownCard(t *testing.T) {
	store := newFakeStore()

	device := newScriptedDevice("FF FF FF FF F\n", "25\n")
	var replies strings.Builder

	runPipeline(t, store, device, &replies)

	movements := store.recorded()
	require.Len(t, movements, 1)
	assert.Equal(t, db.MovementUnknownTag, movements[0].Kind)
	assert.Equal(t, db.HolderUnknown, movements[0].HolderName)
	assert.Equal(t, "UNKNOWN CARD\n", replies.String())
}

// Noise between the two protocol phases is discarded without disturbing the
// pending transaction.
func TestPipeline_NoiseDiscarded(t *testing.T) {
	store := newFakeStore()
	store.addAccount("AB 12 CD 34 5", "Maria", "Lopez", 100)

	device := newScriptedDevice(
		"boot ok\n",          // noise before any tag
		"AB 12 CD 34 5\n",    // tag
		"no digits either\n", // noise between tag and amount
		"50\n",               // amount
	)
	var replies strings.Builder

	runPipeline(t, store, device, &replies)

	assert.Equal(t, int64(50), store.balance(t, "AB 12 CD 34 5"))
	assert.Equal(t, "APPROVED\n", replies.String())
}

// A store outage abandons the in-flight transaction silently but the next
// card still works once the store is back.
func TestPipeline_StoreOutageDoesNotWedge(t *testing.T) {
	store := newFakeStore()
	store.addAccount("AB 12 CD 34 5", "Maria", "Lopez", 100)

	processor := NewProcessor(store, nil, nil, testLogger())
	var replies strings.Builder
	responder := NewResponder(&replies, nil, testLogger())

	// First transaction hits a store outage.
	store.getErr = errors.New("connection refused")
	device := newScriptedDevice("AB 12 CD 34 5\n", "50\n")
	pipeline := NewPipeline(device, processor, responder, 4096, 64, nil, testLogger())
	require.NoError(t, pipeline.Run(context.Background()))

	assert.Empty(t, replies.String())
	assert.Empty(t, store.recorded())
	assert.Equal(t, int64(100), store.balance(t, "AB 12 CD 34 5"))

	// Store recovers; the same pipeline state machine would accept the next
	// exchange, here exercised with a fresh device stream.
	store.getErr = nil
	device = newScriptedDevice("AB 12 CD 34 5\n", "50\n")
	pipeline = NewPipeline(device, processor, responder, 4096, 64, nil, testLogger())
	require.NoError(t, pipeline.Run(context.Background()))

	assert.Equal(t, "APPROVED\n", replies.String())
	assert.Equal(t, int64(50), store.balance(t, "AB 12 CD 34 5"))
}

func TestPipeline_ContextCancelStops(t *testing.T) {
	store := newFakeStore()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// A blocking reader: Run must return promptly on a canceled context even
	// though the device never produces bytes.
	blockForever, _ := io.Pipe()
	processor := NewProcessor(store, nil, nil, testLogger())
	responder := NewResponder(io.Discard, nil, testLogger())
	pipeline := NewPipeline(blockForever, processor, responder, 4096, 64, nil, testLogger())

	require.NoError(t, pipeline.Run(ctx))
}
