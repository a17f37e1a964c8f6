// Package publish fans detection events out to downstream consumers over a
// ZeroMQ PUB socket.
package publish

import (
	"fmt"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/pebbe/zmq4"

	"dotsnatch-go/internal/types"
)

// Publisher sends each event as one CBOR message. Slow or absent subscribers
// never block the caller.
type Publisher struct {
	mu     sync.Mutex
	socket *zmq4.Socket
	sent   uint64
}

func NewPublisher(addr string) (*Publisher, error) {
	socket, err := zmq4.NewSocket(zmq4.PUB)
	if err != nil {
		return nil, err
	}
	if err := socket.SetSndhwm(64); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.SetLinger(0); err != nil {
		_ = socket.Close()
		return nil, err
	}
	if err := socket.Bind(addr); err != nil {
		_ = socket.Close()
		return nil, fmt.Errorf("bind %s: %w", addr, err)
	}
	return &Publisher{socket: socket}, nil
}

func (p *Publisher) Publish(ev types.DetectionEvent) error {
	payload, err := cbor.Marshal(ev)
	if err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.socket == nil {
		return fmt.Errorf("publisher is closed")
	}
	if _, err := p.socket.SendBytes(payload, zmq4.DONTWAIT); err != nil {
		return err
	}
	p.sent++
	return nil
}

func (p *Publisher) Sent() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sent
}

func (p *Publisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.socket == nil {
		return nil
	}
	err := p.socket.Close()
	p.socket = nil
	return err
}
