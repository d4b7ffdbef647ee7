package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/lester-yat/POS-UMG-ARDUINO/service/metrics"
	"github.com/lester-yat/POS-UMG-ARDUINO/service/serial"
)

// readBufferSize is the size of the raw read buffer handed to the device.
const readBufferSize = 256

// Pipeline wires one device stream through the framer, the protocol parser,
// the transaction processor and the device responder.
//
// Byte reception is decoupled from processing: a reader goroutine pushes raw
// chunks onto a queue while a single worker drains it. The worker handles
// each resolved request to completion before touching the next line, so at
// most one processor call is ever in flight and the parser's pending-tag
// slot is never overwritten mid-transaction.
type Pipeline struct {
	device    io.Reader
	framer    *serial.LineFramer
	parser    *serial.Parser
	processor *Processor
	responder *Responder
	queueSize int
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewPipeline creates a pipeline for one device stream.
// maxLineBuffer bounds the framer; queueSize bounds the chunk queue between
// the reader and the worker.
func NewPipeline(device io.Reader, processor *Processor, responder *Responder, maxLineBuffer, queueSize int, m *metrics.Metrics, logger *slog.Logger) *Pipeline {
	return &Pipeline{
		device:    device,
		framer:    serial.NewLineFramer(maxLineBuffer),
		parser:    serial.NewParser(logger),
		processor: processor,
		responder: responder,
		queueSize: queueSize,
		metrics:   m,
		logger:    logger,
	}
}

// Run reads the device until ctx is canceled or the device read fails.
// A blocked device read is unblocked by closing the underlying port, which
// the caller is expected to do on shutdown.
func (p *Pipeline) Run(ctx context.Context) error {
	chunks := make(chan []byte, p.queueSize)
	readErr := make(chan error, 1)

	go p.readLoop(ctx, chunks, readErr)

	for {
		select {
		case <-ctx.Done():
			return nil
		case chunk, ok := <-chunks:
			if !ok {
				err := <-readErr
				if err == io.EOF || ctx.Err() != nil {
					return nil
				}
				return fmt.Errorf("device read failed: %w", err)
			}
			p.handleChunk(ctx, chunk)
		}
	}
}

// readLoop pulls raw bytes off the device and queues them. It owns the
// chunks channel and closes it when the device read fails.
func (p *Pipeline) readLoop(ctx context.Context, chunks chan<- []byte, readErr chan<- error) {
	buf := make([]byte, readBufferSize)
	for {
		n, err := p.device.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				readErr <- ctx.Err()
				close(chunks)
				return
			}
		}
		if err != nil {
			readErr <- err
			close(chunks)
			return
		}
	}
}

// handleChunk frames the chunk and drives the protocol parser over every
// complete line, processing resolved requests to completion in order.
func (p *Pipeline) handleChunk(ctx context.Context, chunk []byte) {
	if p.metrics != nil {
		p.metrics.RecordSerialBytes(len(chunk))
	}

	dropsBefore := p.framer.Drops()
	lines := p.framer.Feed(chunk)
	if dropped := p.framer.Drops() - dropsBefore; dropped > 0 {
		p.logger.Warn("framer buffer overflow, discarded buffered bytes")
		if p.metrics != nil {
			p.metrics.RecordBufferDrop()
		}
	}

	if p.metrics != nil && len(lines) > 0 {
		p.metrics.RecordLinesFramed(len(lines))
	}

	for _, line := range lines {
		p.handleLine(ctx, line)
	}
}

func (p *Pipeline) handleLine(ctx context.Context, line string) {
	stateBefore := p.parser.State()

	req, resolved := p.parser.HandleLine(line)
	if !resolved {
		if p.metrics != nil && p.parser.State() == stateBefore {
			p.metrics.RecordLineDiscarded(stateBefore.String())
		}
		return
	}

	outcome, err := p.processor.Process(ctx, req.TagID, req.Amount)
	if err != nil {
		// The attempt is abandoned and the device gets no reply; the parser
		// is already back in the awaiting-tag state so the device is not
		// wedged for the next card.
		p.logger.Error("transaction abandoned",
			"tag", req.TagID,
			"amount", req.Amount,
			"error", err,
		)
		return
	}

	p.responder.Respond(outcome)
}
