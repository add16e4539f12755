// Package queue implements the point-to-point push/pull transport between the
// three roles. The sender side owns a pool of persistent PUSH sockets, one
// per endpoint, each *bound* rather than connected: the downstream party
// dials the upstream party's endpoint. The receiver side pulls messages and
// persists every data frame into a byte spool, preserving arrival order.
//
// Control frames are single-byte messages: 0xFE (SOF) primes a freshly
// connected receiver and is discarded; 0xFF (EOF) terminates a streaming
// receive. Neither is ever persisted.
package queue

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
	"github.com/sirupsen/logrus"

	"github.com/hannahmeinh/hhe-bench/internal/spool"
)

const (
	// MarkerSOF is the start-of-stream control byte.
	MarkerSOF byte = 0xFE
	// MarkerEOF is the end-of-stream control byte.
	MarkerEOF byte = 0xFF
)

// linger bounds how much queued data an orderly Close may spend flushing.
const linger = 1 * time.Second

// Pool owns one bound PUSH socket per endpoint. Sockets are created lazily on
// first send and live until Close. The pool lock guards only the socket map;
// the send itself runs with the lock released, so sends to distinct endpoints
// proceed in parallel while sends to one endpoint serialize at the socket.
type Pool struct {
	mu      sync.Mutex
	sockets map[string]zmq4.Socket
	log     *logrus.Logger
}

// NewPool returns an empty sender pool.
func NewPool(log *logrus.Logger) *Pool {
	if log == nil {
		log = logrus.New()
	}
	return &Pool{
		sockets: make(map[string]zmq4.Socket),
		log:     log,
	}
}

func (p *Pool) socket(endpoint string) (zmq4.Socket, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sock, ok := p.sockets[endpoint]; ok {
		return sock, nil
	}

	sock := zmq4.NewPush(context.Background())
	if err := sock.Listen(endpoint); err != nil {
		sock.Close()
		return nil, fmt.Errorf("failed to bind push socket on %s: %w", endpoint, err)
	}
	p.log.Debugf("bound push socket on %s", endpoint)
	p.sockets[endpoint] = sock
	return sock, nil
}

// Send delivers payload as a single queue message on endpoint, binding the
// socket on first use. The queue's own message framing carries the length;
// no frame prefix is applied on the wire.
func (p *Pool) Send(endpoint string, payload []byte) error {
	sock, err := p.socket(endpoint)
	if err != nil {
		return err
	}
	if err := sock.Send(zmq4.NewMsg(payload)); err != nil {
		return fmt.Errorf("failed to send %d bytes on %s: %w", len(payload), endpoint, err)
	}
	return nil
}

// SendSOF sends the start-of-stream control frame.
func (p *Pool) SendSOF(endpoint string) error {
	return p.Send(endpoint, []byte{MarkerSOF})
}

// SendEOF sends the end-of-stream control frame.
func (p *Pool) SendEOF(endpoint string) error {
	return p.Send(endpoint, []byte{MarkerEOF})
}

// Close shuts every socket down. Sends are written through to the transport
// synchronously, so the linger only bounds the final connection teardown.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		var firstErr error
		for endpoint, sock := range p.sockets {
			if err := sock.Close(); err != nil && firstErr == nil {
				firstErr = fmt.Errorf("failed to close push socket on %s: %w", endpoint, err)
			}
		}
		done <- firstErr
	}()

	select {
	case err := <-done:
		p.sockets = make(map[string]zmq4.Socket)
		return err
	case <-time.After(linger):
		p.sockets = make(map[string]zmq4.Socket)
		return fmt.Errorf("pool close exceeded %s linger", linger)
	}
}

// ReceiveAndStore connects a PULL socket to endpoint and drains messages into
// the byte spool at path until maxMessages data frames have been persisted or
// (when expectEOF is set) the EOF control frame arrives. SOF frames, and EOF
// frames when expectEOF is not set, are skipped without being persisted.
// maxMessages == 0 means no count bound. Returns the number of
// persisted data frames.
//
// The spool's frame order equals the wire arrival order.
func ReceiveAndStore(ctx context.Context, endpoint, path string, maxMessages int, expectEOF bool, log *logrus.Logger) (int, error) {
	if log == nil {
		log = logrus.New()
	}

	// The upstream party binds its push socket lazily on first send, so the
	// dial side needs a generous retry window.
	sock := zmq4.NewPull(ctx, zmq4.WithDialerRetry(250*time.Millisecond), zmq4.WithDialerMaxRetries(120))
	defer sock.Close()

	if err := sock.Dial(endpoint); err != nil {
		return 0, fmt.Errorf("failed to connect pull socket to %s: %w", endpoint, err)
	}

	appender := spool.NewAppender(path)
	received := 0
	for maxMessages == 0 || received < maxMessages {
		msg, err := sock.Recv()
		if err != nil {
			if ctx.Err() != nil {
				return received, fmt.Errorf("receive on %s canceled: %w", endpoint, ctx.Err())
			}
			return received, fmt.Errorf("failed to receive on %s: %w", endpoint, err)
		}

		data := msg.Bytes()
		if len(data) == 1 && data[0] == MarkerSOF {
			log.Debugf("skipping SOF frame on %s", endpoint)
			continue
		}
		if len(data) == 1 && data[0] == MarkerEOF {
			if expectEOF {
				log.Debugf("EOF frame on %s after %d messages", endpoint, received)
				break
			}
			log.Debugf("skipping EOF frame on %s", endpoint)
			continue
		}

		if err := appender.Append(data); err != nil {
			return received, fmt.Errorf("failed to persist received frame: %w", err)
		}
		received++
	}
	return received, nil
}

// SendSpool re-sends every frame of the spool at path as a queue message on
// endpoint, optionally truncating the spool afterwards. Missing spools send
// nothing.
func (p *Pool) SendSpool(path, endpoint string, truncateAfter bool) error {
	reader, err := spool.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read spool %s for re-send: %w", path, err)
		}
		if err := p.Send(endpoint, payload); err != nil {
			return err
		}
	}

	if truncateAfter {
		return spool.Truncate(path)
	}
	return nil
}
