package pop3

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/migadu/popfetch/consts"
	"github.com/migadu/popfetch/message"
	"github.com/migadu/popfetch/pkg/metrics"
)

// RawMessage is the undecoded result of one RETR. OK is false when the
// server rejected the command; Raw is then empty.
type RawMessage struct {
	Index int
	Raw   string
	OK    bool
}

// DeleteResult is the outcome of one DELE.
type DeleteResult struct {
	Index int
	OK    bool
}

// Message is a retrieved and decoded message. Err is set when retrieval or
// decoding failed; Record is then nil.
type Message struct {
	Index  int
	Record *message.Record
	Err    error
}

// TotalCount returns the number of messages in the mailbox, logging in
// first when needed. An unparsable STAT reply counts as 0.
func (c *Client) TotalCount(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loginLocked(ctx); err != nil {
		return 0, err
	}
	total := c.statLocked()
	return total, c.checkConnLocked()
}

func (c *Client) statLocked() int {
	reply, ok := c.ch.Call("STAT", false)
	if !ok {
		return 0
	}
	count, _, _ := strings.Cut(reply, " ")
	n, err := strconv.Atoi(count)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// List retrieves the page of rng messages that ends start messages before
// the newest one, in ascending order. An empty mailbox yields an empty
// slice.
func (c *Client) List(ctx context.Context, start, rng int) ([]RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loginLocked(ctx); err != nil {
		return nil, err
	}
	total := c.statLocked()
	if err := c.checkConnLocked(); err != nil {
		return nil, err
	}
	if total == 0 {
		return []RawMessage{}, nil
	}

	w := ComputeWindow(total, start, rng)
	c.DebugLog("retrieving %s of %d", w, total)
	return c.retrieveLocked(ctx, w.Indices())
}

// Fetch retrieves the given message numbers in the order given.
func (c *Client) Fetch(ctx context.Context, ids ...int) ([]RawMessage, error) {
	if err := validateIDs(ids); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loginLocked(ctx); err != nil {
		return nil, err
	}
	return c.retrieveLocked(ctx, ids)
}

func (c *Client) retrieveLocked(ctx context.Context, ids []int) ([]RawMessage, error) {
	out := make([]RawMessage, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		raw, ok := c.ch.Call("RETR "+strconv.Itoa(id), true)
		if ok {
			metrics.MessagesFetched.Inc()
		}
		out = append(out, RawMessage{Index: id, Raw: raw, OK: ok})
	}
	return out, c.checkConnLocked()
}

// Remove marks each message for deletion with its own DELE. A rejected DELE
// does not stop the rest. Deletions take effect when the session ends with
// Disconnect.
func (c *Client) Remove(ctx context.Context, ids ...int) ([]DeleteResult, error) {
	if err := validateIDs(ids); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.loginLocked(ctx); err != nil {
		return nil, err
	}

	out := make([]DeleteResult, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		_, ok := c.ch.Call("DELE "+strconv.Itoa(id), false)
		metrics.MessagesDeleted.WithLabelValues(authResult(ok)).Inc()
		if !ok {
			c.DebugLog("DELE %d rejected: %s", id, c.ch.LastReply())
		}
		out = append(out, DeleteResult{Index: id, OK: ok})
	}
	return out, c.checkConnLocked()
}

// Messages is List followed by decoding each message.
func (c *Client) Messages(ctx context.Context, start, rng int) ([]Message, error) {
	raws, err := c.List(ctx, start, rng)
	return decodeAll(raws), err
}

// FetchMessages is Fetch followed by decoding each message.
func (c *Client) FetchMessages(ctx context.Context, ids ...int) ([]Message, error) {
	raws, err := c.Fetch(ctx, ids...)
	return decodeAll(raws), err
}

func decodeAll(raws []RawMessage) []Message {
	if raws == nil {
		return nil
	}
	out := make([]Message, 0, len(raws))
	for _, raw := range raws {
		m := Message{Index: raw.Index}
		if !raw.OK {
			m.Err = fmt.Errorf("RETR %d: %w", raw.Index, consts.ErrCommandRejected)
		} else {
			m.Record, m.Err = message.Assemble(raw.Raw, nil)
		}
		out = append(out, m)
	}
	return out
}

// checkConnLocked turns a broken connection into an error and tears the
// session down.
func (c *Client) checkConnLocked() error {
	if c.ch == nil {
		return consts.ErrNotConnected
	}
	if err := c.ch.err; err != nil {
		c.disconnectLocked()
		return fmt.Errorf("%w: %w", consts.ErrNotConnected, err)
	}
	return nil
}

func validateIDs(ids []int) error {
	for _, id := range ids {
		if id < 1 {
			return &ArgumentError{Name: "message number", Reason: fmt.Sprintf("%d is not positive", id)}
		}
	}
	return nil
}
