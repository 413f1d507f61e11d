package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rusq/slackdump/v3/auth"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/emojistudio/slack-emoji-bridge/pkg/credential"
	"github.com/emojistudio/slack-emoji-bridge/pkg/limiter"
	"github.com/emojistudio/slack-emoji-bridge/pkg/provider/edge"
	"github.com/emojistudio/slack-emoji-bridge/pkg/transport"
)

const emojisNotReadyMsg = "emoji inventory is not loaded yet, run a sync first"

var ErrEmojisNotReady = errors.New(emojisNotReadyMsg)

type EmojiCache struct {
	Workspace   string           `json:"workspace"`
	RefreshedAt time.Time        `json:"refreshed_at"`
	Emojis      map[string]Emoji `json:"emojis"`
}

type Emoji struct {
	Name            string   `json:"name"`
	URL             string   `json:"url"`
	IsCustom        bool     `json:"is_custom"`
	IsAlias         bool     `json:"is_alias,omitempty"`
	AliasFor        string   `json:"alias_for,omitempty"`
	Aliases         []string `json:"aliases"`
	TeamID          string   `json:"team_id"`
	UserID          string   `json:"user_id"`
	UserDisplayName string   `json:"user_display_name,omitempty"`
	Created         int64    `json:"created,omitempty"`
}

type SlackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetEmojiContext(ctx context.Context) (map[string]string, error)

	// Edge API methods
	EmojiAdminList(ctx context.Context) ([]edge.AdminEmoji, error)
}

// SessionClient reaches one workspace with a captured browser session,
// through both the public Web API and the web client's own endpoints.
type SessionClient struct {
	slackClient *slack.Client
	edgeClient  *edge.Client

	authProvider auth.Provider
	teamID       string
}

type SessionOptions struct {
	Transport transport.Options
	// BaseURL replaces https://<workspace>.slack.com.
	BaseURL string
}

func NewSessionClient(rec credential.Record, opts SessionOptions, logger *zap.Logger) (*SessionClient, error) {
	if err := rec.Validate(); err != nil {
		return nil, err
	}
	authProvider, err := auth.NewValueAuth(rec.Token, rec.DCookie())
	if err != nil {
		return nil, fmt.Errorf("session auth: %w", err)
	}

	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = "https://" + rec.Workspace + ".slack.com"
	}
	baseURL = strings.TrimSuffix(baseURL, "/")

	httpClient := transport.ProvideHTTPClient(authProvider.Cookies(), logger, opts.Transport)
	slackClient := slack.New(authProvider.SlackToken(),
		slack.OptionHTTPClient(httpClient),
		slack.OptionAPIURL(baseURL+"/api/"),
	)

	// The edge client replays the captured Cookie header itself.
	edgeClient, err := edge.New(rec,
		edge.OptionHTTPClient(transport.ProvideHTTPClient(nil, logger, opts.Transport)),
		edge.OptionUserAgent(opts.Transport.UserAgent),
		edge.OptionBaseURL(baseURL),
	)
	if err != nil {
		return nil, err
	}

	return &SessionClient{
		slackClient:  slackClient,
		edgeClient:   edgeClient,
		authProvider: authProvider,
		teamID:       rec.TeamID,
	}, nil
}

func (c *SessionClient) AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error) {
	return c.slackClient.AuthTestContext(ctx)
}

func (c *SessionClient) GetEmojiContext(ctx context.Context) (map[string]string, error) {
	return c.slackClient.GetEmojiContext(ctx)
}

func (c *SessionClient) EmojiAdminList(ctx context.Context) ([]edge.AdminEmoji, error) {
	return c.edgeClient.EmojiAdminList(ctx)
}

// ClientFactory binds a SlackAPI to a credential.
type ClientFactory func(rec credential.Record) (SlackAPI, error)

func SessionFactory(opts SessionOptions, logger *zap.Logger) ClientFactory {
	return func(rec credential.Record) (SlackAPI, error) {
		return NewSessionClient(rec, opts, logger)
	}
}

// Inventory is the custom emoji list of the resident workspace, cached on
// disk between runs.
type Inventory struct {
	newClient ClientFactory
	logger    *zap.Logger

	rateLimiter *rate.Limiter

	mu          sync.RWMutex
	emojis      map[string]Emoji
	workspace   string
	refreshedAt time.Time
	emojisCache string
	emojisReady bool
}

func NewInventory(factory ClientFactory, emojisCache string, logger *zap.Logger) *Inventory {
	return &Inventory{
		newClient:   factory,
		logger:      logger,
		rateLimiter: limiter.Tier2.Limiter(),
		emojis:      make(map[string]Emoji),
		emojisCache: emojisCache,
	}
}

// AuthTest checks that rec still opens a session.
func (inv *Inventory) AuthTest(ctx context.Context, rec credential.Record) (*slack.AuthTestResponse, error) {
	client, err := inv.newClient(rec)
	if err != nil {
		return nil, err
	}
	return client.AuthTestContext(ctx)
}

// LoadCache restores the inventory of workspace from the cache file. It
// reports false when there is no usable cache.
func (inv *Inventory) LoadCache(workspace string) bool {
	data, err := os.ReadFile(inv.emojisCache)
	if err != nil {
		return false
	}
	var cached EmojiCache
	if err := json.Unmarshal(data, &cached); err != nil {
		inv.logger.Warn("Failed to unmarshal emojis cache, will refetch",
			zap.String("cache_file", inv.emojisCache),
			zap.Error(err))
		return false
	}
	if cached.Workspace != workspace {
		inv.logger.Debug("Emojis cache belongs to another workspace",
			zap.String("cache_file", inv.emojisCache),
			zap.String("cached", cached.Workspace),
			zap.String("workspace", workspace))
		return false
	}

	inv.mu.Lock()
	inv.emojis = cached.Emojis
	if inv.emojis == nil {
		inv.emojis = make(map[string]Emoji)
	}
	inv.workspace = cached.Workspace
	inv.refreshedAt = cached.RefreshedAt
	inv.emojisReady = true
	inv.mu.Unlock()

	inv.logger.Info("Loaded emojis from cache",
		zap.Int("count", len(cached.Emojis)),
		zap.String("cache_file", inv.emojisCache))
	return true
}

// Refresh fetches the custom emoji of rec's workspace. emoji.list is
// authoritative; emoji.adminList only adds who uploaded what and when, and
// is skipped when the account may not read it.
func (inv *Inventory) Refresh(ctx context.Context, rec credential.Record) (*EmojiCache, error) {
	if err := inv.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	client, err := inv.newClient(rec)
	if err != nil {
		return nil, err
	}

	list, err := client.GetEmojiContext(ctx)
	if err != nil {
		inv.logger.Error("Failed to fetch emojis", zap.String("workspace", rec.Workspace), zap.Error(err))
		return nil, err
	}

	emojis := make(map[string]Emoji, len(list))
	for name, url := range list {
		e := Emoji{
			Name:     name,
			URL:      url,
			IsCustom: true,
			Aliases:  []string{},
			TeamID:   rec.TeamID,
		}
		if target, ok := strings.CutPrefix(url, "alias:"); ok {
			e.IsAlias = true
			e.AliasFor = target
			e.URL = ""
		}
		emojis[name] = e
	}
	for name, e := range emojis {
		if !e.IsAlias {
			continue
		}
		if target, ok := emojis[e.AliasFor]; ok {
			target.Aliases = append(target.Aliases, name)
			e.URL = target.URL
			emojis[e.AliasFor] = target
			emojis[name] = e
		}
	}

	admin, err := client.EmojiAdminList(ctx)
	if err != nil {
		inv.logger.Warn("Emoji metadata unavailable, continuing without it",
			zap.String("workspace", rec.Workspace),
			zap.Error(err))
	}
	for _, a := range admin {
		e, ok := emojis[a.Name]
		if !ok {
			continue
		}
		e.UserID = a.UserID
		e.UserDisplayName = a.UserDisplayName
		e.Created = a.Created
		if a.TeamID != "" {
			e.TeamID = a.TeamID
		}
		emojis[a.Name] = e
	}
	for name, e := range emojis {
		sort.Strings(e.Aliases)
		emojis[name] = e
	}

	addCommonUnicodeEmojis(emojis)

	now := time.Now().UTC()
	inv.mu.Lock()
	inv.emojis = emojis
	inv.workspace = rec.Workspace
	inv.refreshedAt = now
	inv.emojisReady = true
	inv.mu.Unlock()

	inv.logger.Info("Refreshed emoji inventory",
		zap.String("workspace", rec.Workspace),
		zap.Int("custom", len(list)),
		zap.Int("with_metadata", len(admin)))

	snapshot := inv.ProvideEmojiMap()
	inv.writeCache(snapshot)
	return snapshot, nil
}

func (inv *Inventory) writeCache(c *EmojiCache) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		inv.logger.Error("Failed to marshal emojis for cache", zap.Error(err))
		return
	}
	if dir := filepath.Dir(inv.emojisCache); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			inv.logger.Error("Failed to create cache directory", zap.String("dir", dir), zap.Error(err))
			return
		}
	}
	if err := os.WriteFile(inv.emojisCache, data, 0o644); err != nil {
		inv.logger.Error("Failed to write cache file",
			zap.String("cache_file", inv.emojisCache),
			zap.Error(err))
		return
	}
	inv.logger.Info("Wrote emojis to cache",
		zap.Int("count", len(c.Emojis)),
		zap.String("cache_file", inv.emojisCache))
}

// Forget drops the in-memory inventory and the cache file.
func (inv *Inventory) Forget() error {
	inv.mu.Lock()
	inv.emojis = make(map[string]Emoji)
	inv.workspace = ""
	inv.refreshedAt = time.Time{}
	inv.emojisReady = false
	inv.mu.Unlock()
	if err := os.Remove(inv.emojisCache); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func addCommonUnicodeEmojis(emojis map[string]Emoji) {
	// Standard emoji are always available but never listed by the API.
	commonUnicodeEmojis := map[string]string{
		"thumbsup":         "👍",
		"thumbsdown":       "👎",
		"heart":            "❤️",
		"smile":            "😊",
		"laughing":         "😂",
		"clap":             "👏",
		"fire":             "🔥",
		"eyes":             "👀",
		"rocket":           "🚀",
		"100":              "💯",
		"pray":             "🙏",
		"tada":             "🎉",
		"white_check_mark": "✅",
		"x":                "❌",
		"warning":          "⚠️",
	}

	for name, unicode := range commonUnicodeEmojis {
		if _, exists := emojis[name]; !exists {
			emojis[name] = Emoji{
				Name:     name,
				URL:      unicode,
				IsCustom: false,
				Aliases:  []string{},
			}
		}
	}
}

func (inv *Inventory) ProvideEmojiMap() *EmojiCache {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	m := make(map[string]Emoji, len(inv.emojis))
	for k, v := range inv.emojis {
		m[k] = v
	}
	return &EmojiCache{Workspace: inv.workspace, RefreshedAt: inv.refreshedAt, Emojis: m}
}

// CustomEmojis returns the workspace's own emoji sorted by name.
func (inv *Inventory) CustomEmojis() []Emoji {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	var out []Emoji
	for _, e := range inv.emojis {
		if e.IsCustom {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (inv *Inventory) IsEmojisReady() (bool, error) {
	inv.mu.RLock()
	defer inv.mu.RUnlock()
	if !inv.emojisReady {
		return false, ErrEmojisNotReady
	}
	return true, nil
}
