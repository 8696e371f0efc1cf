package model

type SessionStatus string

const (
	StatusInitializing SessionStatus = "initializing"
	StatusQRPending    SessionStatus = "qr_pending"
	StatusConnected    SessionStatus = "connected"
	StatusDisconnected SessionStatus = "disconnected"
	StatusError        SessionStatus = "error"
	StatusDestroyed    SessionStatus = "destroyed"
)

// Active reports whether a session in this status still owns its session id.
// A destroyed session releases the id for reuse.
func (s SessionStatus) Active() bool {
	return s != StatusDestroyed
}

type PayloadKind string

const (
	PayloadText         PayloadKind = "text"
	PayloadMediaRef     PayloadKind = "media_ref"
	PayloadMedia        PayloadKind = "media"
	PayloadProductBatch PayloadKind = "product_batch"
)
