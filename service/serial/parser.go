package serial

import (
	"log/slog"
	"regexp"
	"strconv"
)

// State is the protocol parser state. The card reader strictly alternates
// between announcing a tag and announcing an amount, one per line, with no
// other framing between the two message types.
type State int

const (
	// StateAwaitingTag is the initial state: the next matching line names a card.
	StateAwaitingTag State = iota
	// StateAwaitingAmount means a tag is pending and the next matching line
	// carries the requested charge.
	StateAwaitingAmount
)

func (s State) String() string {
	switch s {
	case StateAwaitingTag:
		return "awaiting_tag"
	case StateAwaitingAmount:
		return "awaiting_amount"
	default:
		return "unknown"
	}
}

var (
	// Card tags are 11 characters of hex digits with embedded space
	// separators, e.g. "AB 12 CD 34 5".
	tagPattern = regexp.MustCompile(`[0-9a-fA-F ]{11}`)

	// Amounts are the first contiguous run of decimal digits on the line,
	// possibly embedded in surrounding text.
	amountPattern = regexp.MustCompile(`[0-9]+`)
)

// Request is one resolved (tag, amount) transaction request. The holder
// display name is resolved later and travels with the in-flight transaction,
// never in parser state.
type Request struct {
	TagID  string
	Amount int64
}

// Parser is the two-phase protocol state machine. It is not safe for
// concurrent use; the bridge pipeline drives it from a single goroutine.
type Parser struct {
	state      State
	pendingTag string
	logger     *slog.Logger
}

// NewParser creates a parser in StateAwaitingTag.
func NewParser(logger *slog.Logger) *Parser {
	return &Parser{logger: logger}
}

// State returns the current protocol state.
func (p *Parser) State() State {
	return p.state
}

// PendingTag returns the tag under negotiation, or "" in StateAwaitingTag.
func (p *Parser) PendingTag() string {
	return p.pendingTag
}

// HandleLine interprets one framed line according to the current state.
// It returns a resolved request and true when an amount line completes the
// two-phase exchange; the parser is back in StateAwaitingTag by then.
// Lines that do not match the expected pattern for the current state are
// discarded and leave the state unchanged.
func (p *Parser) HandleLine(line string) (Request, bool) {
	switch p.state {
	case StateAwaitingTag:
		match := tagPattern.FindString(line)
		if match == "" {
			p.discard(line)
			return Request{}, false
		}
		p.pendingTag = match
		p.state = StateAwaitingAmount
		p.logger.Debug("tag received", "tag", match)
		return Request{}, false

	case StateAwaitingAmount:
		match := amountPattern.FindString(line)
		if match == "" {
			p.discard(line)
			return Request{}, false
		}
		amount, err := strconv.ParseInt(match, 10, 64)
		if err != nil {
			// Digit run too long for int64; treat like any other malformed line.
			p.logger.Warn("amount out of range, discarding line", "digits", match)
			return Request{}, false
		}

		req := Request{TagID: p.pendingTag, Amount: amount}
		p.pendingTag = ""
		p.state = StateAwaitingTag
		p.logger.Debug("amount received", "tag", req.TagID, "amount", amount)
		return req, true
	}

	return Request{}, false
}

// Reset returns the parser to StateAwaitingTag and clears the pending tag.
// Used when the device connection is reopened.
func (p *Parser) Reset() {
	p.state = StateAwaitingTag
	p.pendingTag = ""
}

func (p *Parser) discard(line string) {
	p.logger.Debug("discarding line", "state", p.state.String(), "line", line)
}
