package message

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/emojistudio/slack-emoji-bridge/pkg/capture"
	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/studio"
	"github.com/emojistudio/slack-emoji-bridge/pkg/uploader"
)

type Capture interface {
	Load() (*credential.Record, error)
	Commit(rec credential.Record) (capture.CommitResult, error)
	OnPartialCapture(rec credential.Record)
}

type Cart interface {
	List(ctx context.Context) ([]cart.Item, error)
	Add(ctx context.Context, item cart.Item) (int, error)
	Remove(ctx context.Context, name, workspace string) error
}

type Uploader interface {
	Upload(ctx context.Context, rec credential.Record, item cart.Item) (uploader.Outcome, error)
}

type Studio interface {
	ReportProgress(ctx context.Context, p studio.Progress)
	ClearData(ctx context.Context) error
}

// Deps are the components messages are routed to.
type Deps struct {
	Capture  Capture
	Cart     Cart
	Uploader Uploader
	Studio   Studio
}

type handlerFunc func(ctx context.Context, payload json.RawMessage) (any, error)

// Dispatcher routes a message to the handler registered for its type.
type Dispatcher struct {
	deps     Deps
	handlers map[Type]handlerFunc
	logger   *zap.Logger
}

func NewDispatcher(deps Deps, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{deps: deps, logger: logger}
	d.handlers = map[Type]handlerFunc{
		CredentialCaptured: withPayload(d.credentialCaptured),
		AuthFailed:         withPayload(d.authFailed),
		RequestCartState:   d.requestCartState,
		AddToCart:          withPayload(d.addToCart),
		RemoveFromCart:     withPayload(d.removeFromCart),
		UploadOne:          withPayload(d.uploadOne),
		SyncProgress:       withPayload(d.syncProgress),
		ClearData:          d.clearData,
	}
	return d
}

func withPayload[T any](fn func(ctx context.Context, p T) (any, error)) handlerFunc {
	return func(ctx context.Context, raw json.RawMessage) (any, error) {
		if len(raw) == 0 || string(raw) == "null" {
			return nil, ErrMissingPayload
		}
		var p T
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		return fn(ctx, p)
	}
}

// Types lists the message types the dispatcher handles.
func (d *Dispatcher) Types() []Type {
	types := make([]Type, 0, len(d.handlers))
	for t := range d.handlers {
		types = append(types, t)
	}
	return types
}

// Dispatch runs the handler for m and returns its reply.
func (d *Dispatcher) Dispatch(ctx context.Context, m Message) (any, error) {
	h, ok := d.handlers[m.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, m.Type)
	}
	reply, err := h(ctx, m.Payload)
	if err != nil {
		d.logger.Debug("Message handler failed", zap.String("type", string(m.Type)), zap.Error(err))
		return nil, fmt.Errorf("%s: %w", m.Type, err)
	}
	return reply, nil
}

// HandleJSON decodes raw, dispatches it and encodes the reply. Handler
// failures are encoded as a Reply with Success false.
func (d *Dispatcher) HandleJSON(ctx context.Context, raw []byte) []byte {
	var reply any
	m, err := Decode(raw)
	if err == nil {
		reply, err = d.Dispatch(ctx, m)
	}
	if err != nil {
		reply = Reply{Error: err.Error()}
	}
	b, err := json.Marshal(reply)
	if err != nil {
		b, _ = json.Marshal(Reply{Error: err.Error()})
	}
	return b
}

func (d *Dispatcher) credentialCaptured(_ context.Context, rec credential.Record) (any, error) {
	if rec.Partial() {
		d.deps.Capture.OnPartialCapture(rec)
		return capture.CommitResult{}, nil
	}
	return d.deps.Capture.Commit(rec)
}

func (d *Dispatcher) authFailed(_ context.Context, p AuthFailedPayload) (any, error) {
	d.deps.Capture.OnPartialCapture(credential.Record{Workspace: p.Workspace})
	return Reply{Success: true}, nil
}

func (d *Dispatcher) requestCartState(ctx context.Context, _ json.RawMessage) (any, error) {
	items, err := d.deps.Cart.List(ctx)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []cart.Item{}
	}
	return items, nil
}

func (d *Dispatcher) addToCart(ctx context.Context, item cart.Item) (any, error) {
	if item.Workspace == "" {
		if rec, _ := d.deps.Capture.Load(); rec != nil {
			item.Workspace = rec.Workspace
		}
	}
	if item.Source == "" {
		item.Source = cart.SourceContextMenu
	}
	size, err := d.deps.Cart.Add(ctx, item)
	if err != nil {
		return nil, err
	}
	return AddReply{Success: true, Size: size}, nil
}

func (d *Dispatcher) removeFromCart(ctx context.Context, p RemovePayload) (any, error) {
	if err := d.deps.Cart.Remove(ctx, p.Name, p.Workspace); err != nil {
		return nil, err
	}
	return Reply{Success: true}, nil
}

func (d *Dispatcher) uploadOne(ctx context.Context, p UploadOnePayload) (any, error) {
	rec, err := d.deps.Capture.Load()
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, credential.ErrInvalidRecord
	}
	return d.deps.Uploader.Upload(ctx, *rec, cart.Item{
		Name:      p.Name,
		Workspace: rec.Workspace,
		URL:       p.DataURL,
		MIMEType:  p.MIMEType,
	})
}

func (d *Dispatcher) syncProgress(ctx context.Context, p studio.Progress) (any, error) {
	d.deps.Studio.ReportProgress(ctx, p)
	return Reply{Success: true}, nil
}

func (d *Dispatcher) clearData(ctx context.Context, _ json.RawMessage) (any, error) {
	if err := d.deps.Studio.ClearData(ctx); err != nil {
		return nil, err
	}
	return Reply{Success: true}, nil
}
