package edge

import (
	"bytes"
	"context"
	"fmt"
	"math/rand/v2"
	"mime/multipart"
	"net/textproto"
	"net/url"
	"runtime/trace"
	"strconv"

	"github.com/emojistudio/slack-emoji-bridge/pkg/media"
)

// emoji.* API

const boundaryChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// emojiAddForm is the request to emoji.add
type emojiAddForm struct {
	BaseRequest
	Name       string
	Mode       string
	SearchArgs string
	Image      []byte
	MIMEType   string
	WebClientFields
}

// EmojiAdd uploads image as the custom emoji name.
func (cl *Client) EmojiAdd(ctx context.Context, name string, image []byte, mimeType string) error {
	ctx, task := trace.NewTask(ctx, "EmojiAdd")
	defer task.End()
	trace.Logf(ctx, "params", "name=%v, mime=%v, bytes=%d", name, mimeType, len(image))

	form := emojiAddForm{
		BaseRequest:     BaseRequest{Token: cl.token},
		Name:            name,
		Mode:            "data",
		SearchArgs:      "{}",
		Image:           image,
		MIMEType:        mimeType,
		WebClientFields: webclientReason("add-custom-emoji-dialog-content"),
	}
	body, contentType, err := form.encode()
	if err != nil {
		return err
	}

	resp, err := cl.post(ctx, "emoji.add", contentType, body)
	if err != nil {
		return err
	}
	return cl.ParseResponse(nil, resp)
}

func (f emojiAddForm) encode() (*bytes.Buffer, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.SetBoundary(webkitBoundary()); err != nil {
		return nil, "", err
	}

	fields := []struct{ k, v string }{
		{"token", f.Token},
		{"name", f.Name},
		{"mode", f.Mode},
		{"search_args", f.SearchArgs},
	}
	for _, kv := range fields {
		if err := w.WriteField(kv.k, kv.v); err != nil {
			return nil, "", err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s%s"`, f.Name, media.Extension(f.MIMEType)))
	ct := f.MIMEType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(f.Image); err != nil {
		return nil, "", err
	}

	extra := url.Values{}
	f.WebClientFields.apply(extra)
	for _, k := range []string{"_x_reason", "_x_mode"} {
		if v := extra.Get(k); v != "" {
			if err := w.WriteField(k, v); err != nil {
				return nil, "", err
			}
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func webkitBoundary() string {
	b := make([]byte, 16)
	for i := range b {
		b[i] = boundaryChars[rand.IntN(len(boundaryChars))]
	}
	return "----WebKitFormBoundary" + string(b)
}

// emojiAdminListForm is the request to emoji.adminList
type emojiAdminListForm struct {
	BaseRequest
	Page    int
	Count   int
	SortBy  string
	SortDir string
	WebClientFields
}

func (f emojiAdminListForm) values() url.Values {
	v := url.Values{}
	f.BaseRequest.apply(v)
	v.Set("page", strconv.Itoa(f.Page))
	v.Set("count", strconv.Itoa(f.Count))
	v.Set("sort_by", f.SortBy)
	v.Set("sort_dir", f.SortDir)
	v.Set("queries", "[]")
	v.Set("user_ids", "[]")
	f.WebClientFields.apply(v)
	return v
}

// AdminEmoji is one custom emoji as the customization page lists it.
type AdminEmoji struct {
	Name            string   `json:"name"`
	IsAlias         int      `json:"is_alias"`
	AliasFor        string   `json:"alias_for"`
	URL             string   `json:"url"`
	Created         int64    `json:"created"`
	TeamID          string   `json:"team_id"`
	UserID          string   `json:"user_id"`
	UserDisplayName string   `json:"user_display_name"`
	CanDelete       bool     `json:"can_delete"`
	Synonyms        []string `json:"synonyms"`
}

type emojiAdminListResponse struct {
	Emoji  []AdminEmoji `json:"emoji"`
	Paging struct {
		Count int `json:"count"`
		Total int `json:"total"`
		Page  int `json:"page"`
		Pages int `json:"pages"`
	} `json:"paging"`
}

// EmojiAdminList returns every custom emoji of the workspace, walking all
// pages.
func (cl *Client) EmojiAdminList(ctx context.Context) ([]AdminEmoji, error) {
	ctx, task := trace.NewTask(ctx, "EmojiAdminList")
	defer task.End()

	var all []AdminEmoji
	for page := 1; ; page++ {
		if err := cl.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		trace.Logf(ctx, "params", "page=%d", page)

		form := emojiAdminListForm{
			BaseRequest:     BaseRequest{Token: cl.token},
			Page:            page,
			Count:           100,
			SortBy:          "name",
			SortDir:         "asc",
			WebClientFields: webclientReason("customize-emoji-new-query"),
		}
		resp, err := cl.PostForm(ctx, "emoji.adminList", form.values())
		if err != nil {
			return nil, err
		}
		var r emojiAdminListResponse
		if err := cl.ParseResponse(&r, resp); err != nil {
			return nil, err
		}
		all = append(all, r.Emoji...)
		if len(r.Emoji) == 0 || page >= r.Paging.Pages {
			return all, nil
		}
	}
}
