package bluesky

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/thebtf/chorus/pkg/models"
)

const (
	postCollection = "app.bsky.feed.post"

	// maxParentWalk bounds the ancestor walk when resolving a reply's root
	// post. Threads deeper than this are treated as unresolvable.
	maxParentWalk = 25
)

// XRPCClient is the production Client implementation over an AT-proto PDS.
type XRPCClient struct {
	host       string
	identifier string
	password   string
	httpClient *http.Client

	mu        sync.RWMutex
	accessJwt string
	did       string
	handle    string
}

var _ Client = (*XRPCClient)(nil)

// NewXRPCClient creates a client for the given PDS host. identifier is the
// account handle, password an app password.
func NewXRPCClient(host, identifier, password string) *XRPCClient {
	return &XRPCClient{
		host:       host,
		identifier: identifier,
		password:   password,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Login establishes a session via com.atproto.server.createSession.
func (c *XRPCClient) Login(ctx context.Context) error {
	body := map[string]string{
		"identifier": c.identifier,
		"password":   c.password,
	}

	var resp struct {
		AccessJwt string `json:"accessJwt"`
		DID       string `json:"did"`
		Handle    string `json:"handle"`
	}
	if err := c.call(ctx, http.MethodPost, "com.atproto.server.createSession", nil, body, &resp, false); err != nil {
		return fmt.Errorf("login: %w", err)
	}

	c.mu.Lock()
	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	c.handle = resp.Handle
	c.mu.Unlock()

	log.Info().Str("handle", resp.Handle).Msg("Platform session established")
	return nil
}

// OwnHandle returns the logged-in account's handle, falling back to the
// configured identifier before login.
func (c *XRPCClient) OwnHandle() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.handle != "" {
		return c.handle
	}
	return c.identifier
}

func (c *XRPCClient) ownDID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.did
}

// notification is one entry of app.bsky.notification.listNotifications.
type notification struct {
	URI    string `json:"uri"`
	CID    string `json:"cid"`
	Reason string `json:"reason"`
	Author struct {
		DID    string `json:"did"`
		Handle string `json:"handle"`
	} `json:"author"`
	Record struct {
		Text string `json:"text"`
	} `json:"record"`
	IndexedAt string `json:"indexedAt"`
}

// ListRecentMentions lists recent notifications and keeps those that
// mention the account (reasons "mention" and "reply" both carry comment
// text directed at us).
func (c *XRPCClient) ListRecentMentions(ctx context.Context, limit int) ([]Mention, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var resp struct {
		Notifications []notification `json:"notifications"`
	}
	if err := c.call(ctx, http.MethodGet, "app.bsky.notification.listNotifications", params, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}

	mentions := make([]Mention, 0, len(resp.Notifications))
	for _, n := range resp.Notifications {
		if n.Reason != "mention" && n.Reason != "reply" {
			continue
		}
		indexedAt, _ := time.Parse(time.RFC3339, n.IndexedAt)
		mentions = append(mentions, Mention{
			URI:       n.URI,
			CID:       n.CID,
			Author:    n.Author.Handle,
			Text:      n.Record.Text,
			IndexedAt: indexedAt,
		})
	}
	return mentions, nil
}

// threadView is the subset of app.bsky.feed.defs#threadViewPost the client
// navigates. Parent links form an explicit chain; the walk stops at the
// first node without a parent or after maxParentWalk hops.
type threadView struct {
	Post *struct {
		URI    string `json:"uri"`
		CID    string `json:"cid"`
		Author struct {
			DID    string `json:"did"`
			Handle string `json:"handle"`
		} `json:"author"`
	} `json:"post"`
	Parent  *threadView   `json:"parent"`
	Replies []*threadView `json:"replies"`
}

func (c *XRPCClient) getPostThread(ctx context.Context, uri string, depth, parentHeight int) (*threadView, error) {
	params := url.Values{}
	params.Set("uri", uri)
	params.Set("depth", fmt.Sprintf("%d", depth))
	params.Set("parentHeight", fmt.Sprintf("%d", parentHeight))

	var resp struct {
		Thread *threadView `json:"thread"`
	}
	if err := c.call(ctx, http.MethodGet, "app.bsky.feed.getPostThread", params, nil, &resp, true); err != nil {
		return nil, fmt.Errorf("get post thread: %w", err)
	}
	return resp.Thread, nil
}

// ResolveParentOf walks the reply's ancestor chain to its root post.
func (c *XRPCClient) ResolveParentOf(ctx context.Context, ref models.PostRef) (*models.PostRef, error) {
	thread, err := c.getPostThread(ctx, ref.URI, 0, maxParentWalk)
	if err != nil {
		return nil, err
	}
	return rootOf(thread), nil
}

// rootOf follows parent links to the chain's topmost post. Returns nil when
// the walk cannot determine a root (missing nodes, or the depth bound hit
// with parents still above).
func rootOf(thread *threadView) *models.PostRef {
	node := thread
	for hops := 0; node != nil; hops++ {
		if node.Post == nil {
			return nil
		}
		if node.Parent == nil {
			return &models.PostRef{URI: node.Post.URI, CID: node.Post.CID}
		}
		if hops >= maxParentWalk {
			return nil
		}
		node = node.Parent
	}
	return nil
}

// HasOwnReplyOn checks the post's direct replies for one authored by the
// monitored account.
func (c *XRPCClient) HasOwnReplyOn(ctx context.Context, parent models.PostRef) (bool, error) {
	thread, err := c.getPostThread(ctx, parent.URI, 1, 0)
	if err != nil {
		return false, err
	}
	if thread == nil {
		return false, nil
	}

	own := c.ownDID()
	handle := c.OwnHandle()
	for _, reply := range thread.Replies {
		if reply == nil || reply.Post == nil {
			continue
		}
		if (own != "" && reply.Post.Author.DID == own) || reply.Post.Author.Handle == handle {
			return true, nil
		}
	}
	return false, nil
}

// PublishReply creates a reply record under parent. The reply's root ref is
// resolved from the parent's own chain so threading stays correct when the
// parent is itself a reply.
func (c *XRPCClient) PublishReply(ctx context.Context, text string, parent models.PostRef) (string, error) {
	root := parent
	if resolved, err := c.ResolveParentOf(ctx, parent); err == nil && resolved != nil {
		root = *resolved
	}

	record := map[string]interface{}{
		"$type":     postCollection,
		"text":      text,
		"createdAt": time.Now().UTC().Format(time.RFC3339),
		"reply": map[string]interface{}{
			"root":   map[string]string{"uri": root.URI, "cid": root.CID},
			"parent": map[string]string{"uri": parent.URI, "cid": parent.CID},
		},
	}
	body := map[string]interface{}{
		"repo":       c.ownDID(),
		"collection": postCollection,
		"record":     record,
	}

	var resp struct {
		URI string `json:"uri"`
		CID string `json:"cid"`
	}
	if err := c.call(ctx, http.MethodPost, "com.atproto.repo.createRecord", nil, body, &resp, true); err != nil {
		return "", fmt.Errorf("publish reply: %w", err)
	}
	return resp.URI, nil
}

// call performs one XRPC request. Authenticated calls retry once after a
// fresh login when the session token has expired.
func (c *XRPCClient) call(ctx context.Context, method, endpoint string, params url.Values, body, out interface{}, authed bool) error {
	status, err := c.doOnce(ctx, method, endpoint, params, body, out, authed)
	if authed && status == http.StatusUnauthorized {
		log.Debug().Str("endpoint", endpoint).Msg("Session expired, re-authenticating")
		if err := c.Login(ctx); err != nil {
			return err
		}
		_, err = c.doOnce(ctx, method, endpoint, params, body, out, authed)
	}
	return err
}

func (c *XRPCClient) doOnce(ctx context.Context, method, endpoint string, params url.Values, body, out interface{}, authed bool) (int, error) {
	u := c.host + "/xrpc/" + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authed {
		c.mu.RLock()
		token := c.accessJwt
		c.mu.RUnlock()
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return resp.StatusCode, fmt.Errorf("%s: status %d: %s", endpoint, resp.StatusCode, string(data))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: decode response: %w", endpoint, err)
		}
	}
	return resp.StatusCode, nil
}
