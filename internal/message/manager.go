// Package message routes inbound channel events to the external responder
// and forwards replies into the delivery pipeline. Events for one session
// are handled in receipt order by a single consumer goroutine; different
// sessions proceed fully in parallel.
package message

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/wavelink/bridge-server-go/internal/channel"
	"github.com/wavelink/bridge-server-go/internal/config"
	"github.com/wavelink/bridge-server-go/internal/delivery"
	"github.com/wavelink/bridge-server-go/internal/model"
	"github.com/wavelink/bridge-server-go/internal/registry"
	"github.com/wavelink/bridge-server-go/internal/responder"
)

type Manager struct {
	registry  *registry.Registry
	responder responder.Responder
	pipeline  *delivery.Pipeline

	queueCap         int
	responderTimeout time.Duration
	idleTTL          time.Duration

	mu     sync.Mutex
	queues map[string]chan channel.InboundEvent
	closed bool
	wg     sync.WaitGroup
}

func NewManager(reg *registry.Registry, rsp responder.Responder, pipeline *delivery.Pipeline, queueCap int, responderTimeout time.Duration) *Manager {
	return &Manager{
		registry:         reg,
		responder:        rsp,
		pipeline:         pipeline,
		queueCap:         queueCap,
		responderTimeout: responderTimeout,
		idleTTL:          config.InboundQueueIdleTTL,
		queues:           make(map[string]chan channel.InboundEvent),
	}
}

// HandleInbound enqueues one event onto the session's queue, creating the
// queue and its consumer on first use. A full queue drops the event rather
// than block the channel runtime. The enqueue happens under the manager
// lock so it cannot race the idle removal in consume.
func (m *Manager) HandleInbound(ev channel.InboundEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return
	}

	q, ok := m.queues[ev.SessionID]
	if !ok {
		q = make(chan channel.InboundEvent, m.queueCap)
		m.queues[ev.SessionID] = q
		m.wg.Add(1)
		go m.consume(ev.SessionID, q)
	}

	select {
	case q <- ev:
	default:
		log.Warn().
			Str("sessionId", ev.SessionID).
			Str("chatId", ev.ChatID).
			Msg("inbound queue full, dropping event")
	}
}

// consume handles one session's events in order. It exits after an idle
// period so destroyed sessions don't leak a goroutine and a queue.
func (m *Manager) consume(sessionID string, q chan channel.InboundEvent) {
	defer m.wg.Done()

	idle := time.NewTimer(m.idleTTL)
	defer idle.Stop()

	for {
		select {
		case ev, ok := <-q:
			if !ok {
				return
			}
			m.process(ev)
			if !idle.Stop() {
				<-idle.C
			}
			idle.Reset(m.idleTTL)
		case <-idle.C:
			m.mu.Lock()
			if len(q) == 0 && !m.closed {
				delete(m.queues, sessionID)
				m.mu.Unlock()
				return
			}
			m.mu.Unlock()
			idle.Reset(m.idleTTL)
		}
	}
}

func (m *Manager) process(ev channel.InboundEvent) {
	s, ok := m.registry.Get(ev.SessionID)
	if !ok {
		return
	}

	req := responder.Request{
		SessionID: ev.SessionID,
		OwnerID:   s.OwnerID,
		ChatID:    ev.ChatID,
		SenderID:  ev.SenderID,
		IsGroup:   ev.IsGroup,
		Body:      ev.Body,
		Timestamp: ev.Timestamp,
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.responderTimeout)
	reply, err := m.responder.Respond(ctx, req)
	cancel()

	if err != nil {
		// A failed reply must never take down event processing.
		log.Error().Err(err).
			Str("sessionId", ev.SessionID).
			Str("chatId", ev.ChatID).
			Msg("responder failed")
		return
	}
	if reply.Empty() {
		return
	}

	m.deliver(ev, reply)
}

func (m *Manager) deliver(ev channel.InboundEvent, reply *responder.Reply) {
	client, ok := m.registry.Client(ev.SessionID)
	if !ok {
		log.Warn().Str("sessionId", ev.SessionID).Msg("reply dropped: no live channel handle")
		return
	}
	jobCtx, ok := m.registry.Context(ev.SessionID)
	if !ok {
		return
	}

	unlock, ok := m.registry.LockSend(ev.SessionID)
	if !ok {
		return
	}
	defer unlock()

	var payload model.Payload
	if len(reply.Products) > 0 {
		payload = model.ProductBatchPayload(reply.Products)
	} else {
		payload = delivery.Classify(reply.Text)
	}

	job := delivery.NewJob(ev.SessionID, ev.ChatID, payload)
	res := m.pipeline.Run(jobCtx, client, job)
	if res.ItemsFailed > 0 {
		log.Warn().
			Str("sessionId", ev.SessionID).
			Str("chatId", ev.ChatID).
			Int("itemsFailed", res.ItemsFailed).
			Msg("reply delivery had failures")
	}
}

// Close shuts every queue down and waits for in-flight events to finish.
func (m *Manager) Close() {
	m.mu.Lock()
	m.closed = true
	for id, q := range m.queues {
		close(q)
		delete(m.queues, id)
	}
	m.mu.Unlock()
	m.wg.Wait()
}
