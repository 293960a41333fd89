// Package router decodes inbound frames and performs public fan-out,
// private point-to-point delivery, and file transfer hand-off, coupling each
// delivery with its transcript writes.
package router

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"parley/internal/history"
	"parley/internal/ws"
	"parley/pkg/wire"
)

// UserDirectory is the read-only set of registered account names. Public
// message history fans out over this set, which is a superset of the
// currently connected identities.
type UserDirectory interface {
	Usernames(ctx context.Context) ([]string, error)
}

// BlobStore receives uploaded file bytes and hands back an opaque id. The
// router only ever forwards the id, never the bytes.
type BlobStore interface {
	Store(ctx context.Context, data []byte, filename string) (string, error)
}

// Router routes one inbound frame at a time per connection. History writes
// and live delivery for a single message happen under one critical section,
// so a sender that has observed its own echo can immediately read its
// transcript and find the message recorded. Different messages, including
// ones arriving concurrently on other connections, interleave freely at
// message granularity.
type Router struct {
	mu        sync.Mutex
	registry  *ws.Registry
	history   *history.Store
	directory UserDirectory
	blobs     BlobStore
}

// NewRouter creates a message router.
func NewRouter(registry *ws.Registry, historyStore *history.Store, directory UserDirectory, blobs BlobStore) *Router {
	return &Router{
		registry:  registry,
		history:   historyStore,
		directory: directory,
		blobs:     blobs,
	}
}

// HandleFrame processes one raw inbound frame from sender. Every failure is
// sender-local: exactly one error frame goes back to sender and shared state
// stays untouched.
func (r *Router) HandleFrame(ctx context.Context, sender ws.Sink, raw []byte) {
	frame, err := wire.Decode(raw)
	if err != nil {
		r.sendError(sender, err.Error())
		return
	}

	switch frame.Kind {
	case wire.KindMessage:
		r.handleText(ctx, sender, frame)
	case wire.KindFile:
		r.handleFile(ctx, sender, frame)
	}
}

func (r *Router) handleText(ctx context.Context, sender ws.Sink, frame *wire.Inbound) {
	if frame.Recipient == wire.RecipientPublic {
		r.deliverPublic(ctx, sender.Identity(), wire.Public(sender.Identity(), frame.Content), frame.Content)
		return
	}

	if frame.Recipient == sender.Identity() {
		r.sendError(sender, ErrSelfAddressed.Error())
		return
	}

	from := sender.Identity()
	to := frame.Recipient

	r.mu.Lock()
	recipient, ok := r.registry.Lookup(to)
	if !ok {
		r.mu.Unlock()
		r.sendError(sender, ErrRecipientNotFound.Error())
		return
	}

	recipient.TrySend(wire.Private(from, frame.Content))
	sender.TrySend(wire.PrivateSent(to, frame.Content))
	r.history.Append(from, "To "+to+": "+frame.Content)
	r.history.Append(to, "From "+from+": "+frame.Content)
	r.mu.Unlock()
}

func (r *Router) handleFile(ctx context.Context, sender ws.Sink, frame *wire.Inbound) {
	if len(frame.Data) == 0 {
		r.sendError(sender, ErrNoPayload.Error())
		return
	}

	if frame.Recipient != wire.RecipientPublic && frame.Recipient == sender.Identity() {
		r.sendError(sender, ErrSelfAddressed.Error())
		return
	}

	// Blob hand-off happens outside the routing critical section: it is the
	// only slow operation on this path and must not serialize unrelated
	// messages behind storage I/O.
	fileID, err := r.blobs.Store(ctx, frame.Data, frame.Filename)
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"identity": sender.Identity(),
			"filename": frame.Filename,
			"error":    err,
		}).Error("Blob store rejected upload")
		r.sendError(sender, ErrUploadFailed.Error())
		return
	}

	from := sender.Identity()
	metadata := wire.File(from, fileID, frame.Filename)

	if frame.Recipient == wire.RecipientPublic {
		// Public file offers carry no transcript writes, unlike public text.
		r.mu.Lock()
		for _, entry := range r.registry.Enumerate() {
			entry.Sink.TrySend(metadata)
		}
		r.mu.Unlock()
		return
	}

	to := frame.Recipient

	r.mu.Lock()
	recipient, ok := r.registry.Lookup(to)
	if !ok {
		r.mu.Unlock()
		r.sendError(sender, ErrRecipientNotFound.Error())
		return
	}

	recipient.TrySend(metadata)
	sender.TrySend(metadata)
	r.history.Append(from, "To "+to+": sent file '"+frame.Filename+"'")
	r.history.Append(to, "From "+from+": received file '"+frame.Filename+"'")
	r.mu.Unlock()
}

// deliverPublic appends one transcript line per directory account, then
// delivers the frame to every registered connection including the sender.
// History fans out over the account directory while delivery fans out over
// live connections; the two sets are not identical and that asymmetry is
// kept on purpose.
func (r *Router) deliverPublic(ctx context.Context, from string, frame []byte, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	usernames, err := r.directory.Usernames(ctx)
	if err != nil {
		// The directory is the only fallible collaborator on this path.
		// Delivery is the primary contract, so deliver anyway and skip the
		// transcript writes for this message.
		logrus.WithFields(logrus.Fields{
			"from":  from,
			"error": err,
		}).Error("User directory unavailable, skipping history fan-out")
	} else {
		line := from + ": " + content
		for _, username := range usernames {
			r.history.Append(username, line)
		}
	}

	for _, entry := range r.registry.Enumerate() {
		entry.Sink.TrySend(frame)
	}
}

func (r *Router) sendError(sender ws.Sink, message string) {
	sender.TrySend(wire.Error(message))
}
