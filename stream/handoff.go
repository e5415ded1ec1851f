package stream

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrDropped means no receiver was waiting and the frame was discarded.
	ErrDropped = errors.New("no receiver waiting, frame dropped")
	// ErrDisconnected means the other end of the Handoff has been closed for good.
	ErrDisconnected = errors.New("handoff disconnected")
)

// Handoff is a zero-capacity channel between one producer and one consumer.
// A send only succeeds if a receiver is already blocked in Receive, so at most
// one frame is ever in flight and the consumer always gets the freshest frame.
type Handoff struct {
	frames chan *Frame

	receiverGone chan struct{}
	senderGone   chan struct{}
	closeRecv    sync.Once
	closeSend    sync.Once
}

// NewHandoff creates an open Handoff.
func NewHandoff() *Handoff {
	return &Handoff{
		frames:       make(chan *Frame),
		receiverGone: make(chan struct{}),
		senderGone:   make(chan struct{}),
	}
}

// TrySend hands f to a waiting receiver without blocking. It returns
// ErrDropped if nobody was waiting and ErrDisconnected once CloseReceiver has
// been called. On success ownership of f passes to the receiver.
func (h *Handoff) TrySend(f *Frame) error {
	select {
	case <-h.receiverGone:
		return ErrDisconnected
	default:
	}

	select {
	case h.frames <- f:
		return nil
	default:
		return ErrDropped
	}
}

// Receive blocks until a frame is handed over. It returns ErrDisconnected once
// the sender has closed, or the context's error if ctx ends first.
func (h *Handoff) Receive(ctx context.Context) (*Frame, error) {
	select {
	case f := <-h.frames:
		return f, nil
	case <-h.senderGone:
		return nil, ErrDisconnected
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// CloseReceiver tells the sender that nobody will receive again.
func (h *Handoff) CloseReceiver() {
	h.closeRecv.Do(func() { close(h.receiverGone) })
}

// CloseSender tells receivers that no more frames will be sent.
func (h *Handoff) CloseSender() {
	h.closeSend.Do(func() { close(h.senderGone) })
}
