// Package relay hosts collaboration rooms over websockets.
//
// Each document has a room. Editors join with GET /documents/{id}/ws and
// send collaboration events as JSON text frames; every valid event is fanned
// out to the other connections of the same room. Malformed frames are
// dropped.
//
// With a bridge [collab.Channel] configured (Redis or NATS), events are
// published to the channel instead and fanned out from the channel's
// subscription, so several relay instances can serve the same room. In that
// mode senders receive their own events back and discard them as echoes.
//
// The relay also serves documents from a [storage.Persister]:
//
//	GET  /healthz
//	GET  /metrics
//	GET  /documents
//	GET  /documents/{id}
//	PUT  /documents/{id}
//	GET  /documents/{id}/ws?user=<id>
package relay
