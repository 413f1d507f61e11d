package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"

	"github.com/emojistudio/slack-emoji-bridge/pkg/media"
	"github.com/emojistudio/slack-emoji-bridge/pkg/text"
)

// MaxFileBytes caps local files added to the cart.
const MaxFileBytes = 10 << 20

var (
	ErrFileTooLarge = errors.New("file too large")
	ErrNotMedia     = errors.New("only image or video files can be added")
)

// AddFile reads a local image or video, derives its emoji name from the
// file name and adds it as a data URL.
func (s *Store) AddFile(ctx context.Context, path, workspace string) (Item, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return Item{}, 0, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return Item{}, 0, err
	}
	if st.Size() > MaxFileBytes {
		return Item{}, 0, fmt.Errorf("%w: %s is %s, limit is %s", ErrFileTooLarge,
			filepath.Base(path), humanize.IBytes(uint64(st.Size())), humanize.IBytes(MaxFileBytes))
	}

	data, err := io.ReadAll(io.LimitReader(f, MaxFileBytes+1))
	if err != nil {
		return Item{}, 0, err
	}
	if len(data) > MaxFileBytes {
		return Item{}, 0, fmt.Errorf("%w: %s", ErrFileTooLarge, filepath.Base(path))
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") && !strings.HasPrefix(mt.String(), "video/") {
		return Item{}, 0, fmt.Errorf("%w: %s is %s", ErrNotMedia, filepath.Base(path), mt.String())
	}

	item := Item{
		Name:      text.EmojiNameFromFilename(filepath.Base(path)),
		Workspace: workspace,
		URL:       media.Payload{Data: data, MIMEType: mt.String()}.DataURL(),
		MIMEType:  mt.String(),
		Source:    SourceLocalUpload,
		FileSize:  int64(len(data)),
	}
	size, err := s.Add(ctx, item)
	if err != nil {
		return Item{}, size, err
	}
	return item, size, nil
}
