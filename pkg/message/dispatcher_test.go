package message

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/emojistudio/slack-emoji-bridge/pkg/capture"
	"github.com/emojistudio/slack-emoji-bridge/pkg/cart"
	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/storage"
	"github.com/emojistudio/slack-emoji-bridge/pkg/studio"
	"github.com/emojistudio/slack-emoji-bridge/pkg/uploader"
)

type fakeCapture struct {
	resident  *credential.Record
	committed []credential.Record
	partial   []string
}

func (f *fakeCapture) Load() (*credential.Record, error) { return f.resident, nil }

func (f *fakeCapture) Commit(rec credential.Record) (capture.CommitResult, error) {
	if err := rec.Validate(); err != nil {
		return capture.CommitResult{}, err
	}
	f.committed = append(f.committed, rec)
	return capture.CommitResult{Accepted: true, ShowNotification: true}, nil
}

func (f *fakeCapture) OnPartialCapture(rec credential.Record) {
	f.partial = append(f.partial, rec.Workspace)
}

type fakeUploader struct {
	items []cart.Item
}

func (f *fakeUploader) Upload(_ context.Context, rec credential.Record, item cart.Item) (uploader.Outcome, error) {
	f.items = append(f.items, item)
	return uploader.Outcome{Kind: uploader.KindSuccess, Name: item.Name}, nil
}

type fakeStudio struct {
	progress []studio.Progress
	cleared  int
}

func (f *fakeStudio) ReportProgress(_ context.Context, p studio.Progress) {
	f.progress = append(f.progress, p)
}

func (f *fakeStudio) ClearData(context.Context) error {
	f.cleared++
	return nil
}

type nopBadge struct{}

func (nopBadge) SetBadge(string) {}

var acme = &credential.Record{Workspace: "acme", Token: "xoxc-111-222", Cookie: "d=xoxd-333"}

type fixture struct {
	d   *Dispatcher
	cap *fakeCapture
	up  *fakeUploader
	st  *fakeStudio
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	fc := &fakeCapture{resident: acme}
	fu := &fakeUploader{}
	fs := &fakeStudio{}
	store := cart.NewStore(storage.NewMemory(), fc, nopBadge{}, zaptest.NewLogger(t))
	d := NewDispatcher(Deps{Capture: fc, Cart: store, Uploader: fu, Studio: fs}, zaptest.NewLogger(t))
	return fixture{d: d, cap: fc, up: fu, st: fs}
}

func (f fixture) send(t *testing.T, typ Type, payload any) (any, error) {
	t.Helper()
	m, err := New(typ, payload)
	require.NoError(t, err)
	return f.d.Dispatch(context.Background(), m)
}

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"type":"REMOVE_FROM_CART","payload":{"name":"shipit","workspace":"acme"}}`))
	require.NoError(t, err)
	assert.Equal(t, RemoveFromCart, m.Type)
	assert.JSONEq(t, `{"name":"shipit","workspace":"acme"}`, string(m.Payload))

	_, err = Decode([]byte(`{"payload":{}}`))
	assert.Error(t, err)
	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestDispatchUnknownType(t *testing.T) {
	f := newFixture(t)
	_, err := f.d.Dispatch(context.Background(), Message{Type: "OPEN_POPUP"})
	assert.ErrorIs(t, err, ErrUnknownType)
	assert.Len(t, f.d.Types(), 8)
}

func TestDispatchMissingPayload(t *testing.T) {
	f := newFixture(t)
	for _, typ := range []Type{CredentialCaptured, AuthFailed, AddToCart, RemoveFromCart, UploadOne, SyncProgress} {
		t.Run(string(typ), func(t *testing.T) {
			_, err := f.d.Dispatch(context.Background(), Message{Type: typ})
			assert.ErrorIs(t, err, ErrMissingPayload)
		})
	}
}

func TestCredentialCaptured(t *testing.T) {
	f := newFixture(t)

	reply, err := f.send(t, CredentialCaptured, credential.Record{Workspace: "acme", Token: "xoxc-1", Cookie: "d=xoxd-1"})
	require.NoError(t, err)
	assert.Equal(t, capture.CommitResult{Accepted: true, ShowNotification: true}, reply)
	require.Len(t, f.cap.committed, 1)

	reply, err = f.send(t, CredentialCaptured, credential.Record{Workspace: "globex"})
	require.NoError(t, err)
	assert.Equal(t, capture.CommitResult{}, reply)
	assert.Equal(t, []string{"globex"}, f.cap.partial)
	assert.Len(t, f.cap.committed, 1)
}

func TestAuthFailed(t *testing.T) {
	f := newFixture(t)
	reply, err := f.send(t, AuthFailed, AuthFailedPayload{Workspace: "acme"})
	require.NoError(t, err)
	assert.Equal(t, Reply{Success: true}, reply)
	assert.Equal(t, []string{"acme"}, f.cap.partial)
}

func TestCartMessages(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	reply, err := f.send(t, RequestCartState, nil)
	require.NoError(t, err)
	assert.Equal(t, []cart.Item{}, reply)

	reply, err = f.send(t, AddToCart, cart.Item{Name: "shipit", URL: "https://example.com/shipit.png"})
	require.NoError(t, err)
	assert.Equal(t, AddReply{Success: true, Size: 1}, reply)

	reply, err = f.send(t, AddToCart, cart.Item{Name: "parrot", URL: "https://slackmojis.com/parrot.gif", Source: cart.SourceSlackmojis})
	require.NoError(t, err)
	assert.Equal(t, AddReply{Success: true, Size: 2}, reply)

	_, err = f.send(t, AddToCart, cart.Item{Name: "shipit", URL: "https://example.com/shipit.png"})
	assert.ErrorIs(t, err, cart.ErrDuplicate)

	reply, err = f.send(t, RequestCartState, nil)
	require.NoError(t, err)
	items := reply.([]cart.Item)
	require.Len(t, items, 2)
	assert.Equal(t, "acme", items[0].Workspace)
	assert.Equal(t, cart.SourceContextMenu, items[0].Source)
	assert.Equal(t, cart.SourceSlackmojis, items[1].Source)

	reply, err = f.send(t, RemoveFromCart, RemovePayload{Name: "shipit", Workspace: "acme"})
	require.NoError(t, err)
	assert.Equal(t, Reply{Success: true}, reply)

	left, err := f.d.deps.Cart.List(ctx)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "parrot", left[0].Name)
}

func TestUploadOne(t *testing.T) {
	f := newFixture(t)
	reply, err := f.send(t, UploadOne, UploadOnePayload{Name: "blob", DataURL: "data:image/png;base64,iVBORw0K", MIMEType: "image/png"})
	require.NoError(t, err)
	assert.Equal(t, uploader.Outcome{Kind: uploader.KindSuccess, Name: "blob"}, reply)
	require.Len(t, f.up.items, 1)
	assert.Equal(t, "acme", f.up.items[0].Workspace)
	assert.Equal(t, "image/png", f.up.items[0].MIMEType)

	f.cap.resident = nil
	_, err = f.send(t, UploadOne, UploadOnePayload{Name: "blob", DataURL: "data:image/png;base64,iVBORw0K"})
	assert.ErrorIs(t, err, credential.ErrInvalidRecord)
	assert.Len(t, f.up.items, 1)
}

func TestStudioMessages(t *testing.T) {
	f := newFixture(t)

	reply, err := f.send(t, SyncProgress, studio.Progress{Status: studio.StatusCompleted, EmojiCount: 12})
	require.NoError(t, err)
	assert.Equal(t, Reply{Success: true}, reply)
	assert.Equal(t, []studio.Progress{{Status: studio.StatusCompleted, EmojiCount: 12}}, f.st.progress)

	_, err = f.send(t, ClearData, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, f.st.cleared)
}

func TestHandleJSON(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"add", `{"type":"ADD_TO_CART","payload":{"name":"shipit","url":"https://example.com/a.png"}}`, `{"success":true,"size":1}`},
		{"invalid name", `{"type":"ADD_TO_CART","payload":{"name":"Ship It","url":"https://example.com/a.png"}}`, ""},
		{"unknown", `{"type":"OPEN_POPUP"}`, ""},
		{"garbage", `{`, ""},
		{"clear", `{"type":"CLEAR_DATA"}`, `{"success":true}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.d.HandleJSON(ctx, []byte(tt.in))
			if tt.want != "" {
				assert.JSONEq(t, tt.want, string(out))
				return
			}
			var r Reply
			require.NoError(t, json.Unmarshal(out, &r))
			assert.False(t, r.Success)
			assert.NotEmpty(t, r.Error)
		})
	}
}
