// Copyright 2024-2026 Aiku AI

package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to the platform REST API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

// NewClient creates a client for the given API base URL, authenticating
// with the relay's bot token.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 60 * time.Second},
	}
}

var _ API = (*Client)(nil)

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.doRaw(ctx, method, path, contentType, reqBody, out)
}

func (c *Client) doRaw(ctx context.Context, method, path, contentType string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &Error{Status: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
		if err := json.Unmarshal(data, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}

func (c *Client) Community(ctx context.Context, communityID string) (*Community, error) {
	var community Community
	if err := c.do(ctx, http.MethodGet, "/communities/"+communityID, nil, &community); err != nil {
		return nil, err
	}
	return &community, nil
}

func (c *Client) Channel(ctx context.Context, channelID string) (*Channel, error) {
	var channel Channel
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID, nil, &channel); err != nil {
		return nil, err
	}
	return &channel, nil
}

func (c *Client) User(ctx context.Context, userID string) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, "/users/"+userID, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) SearchMembers(ctx context.Context, communityID, query string) ([]Member, error) {
	path := fmt.Sprintf("/communities/%s/members/search?query=%s", communityID, url.QueryEscape(query))
	var members []Member
	if err := c.do(ctx, http.MethodGet, path, nil, &members); err != nil {
		return nil, err
	}
	return members, nil
}

func (c *Client) ChannelWebhooks(ctx context.Context, channelID string) ([]Webhook, error) {
	var webhooks []Webhook
	if err := c.do(ctx, http.MethodGet, "/channels/"+channelID+"/webhooks", nil, &webhooks); err != nil {
		return nil, err
	}
	return webhooks, nil
}

func (c *Client) CreateWebhook(ctx context.Context, channelID, name string) (*Webhook, error) {
	var webhook Webhook
	body := map[string]string{"name": name}
	if err := c.do(ctx, http.MethodPost, "/channels/"+channelID+"/webhooks", body, &webhook); err != nil {
		return nil, err
	}
	return &webhook, nil
}

func (c *Client) ExecuteWebhook(ctx context.Context, webhook *Webhook, payload *SendPayload) (*Message, error) {
	path := fmt.Sprintf("/webhooks/%s/%s?wait=true", webhook.ID, webhook.Token)
	meta := map[string]string{
		"content":    payload.Content,
		"username":   payload.Username,
		"avatar_url": payload.AvatarURL,
	}
	return c.postMultipart(ctx, path, meta, payload.Files)
}

func (c *Client) SendMessage(ctx context.Context, channelID string, payload *SendPayload) (*Message, error) {
	path := "/channels/" + channelID + "/messages"
	meta := map[string]string{"content": payload.Content}
	return c.postMultipart(ctx, path, meta, payload.Files)
}

// postMultipart sends a delivery request. With no files it degrades to a
// plain JSON post, which is what the oversize fallback path produces.
func (c *Client) postMultipart(ctx context.Context, path string, meta map[string]string, files []File) (*Message, error) {
	var message Message
	if len(files) == 0 {
		if err := c.do(ctx, http.MethodPost, path, meta, &message); err != nil {
			return nil, err
		}
		return &message, nil
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("marshal payload json: %w", err)
	}
	if err := mw.WriteField("payload_json", string(metaJSON)); err != nil {
		return nil, fmt.Errorf("write payload json: %w", err)
	}
	for i, f := range files {
		name := f.Name
		if f.Spoiler && !strings.HasPrefix(name, "SPOILER_") {
			name = "SPOILER_" + name
		}
		part, err := mw.CreateFormFile(fmt.Sprintf("files[%d]", i), name)
		if err != nil {
			return nil, fmt.Errorf("create form file %q: %w", name, err)
		}
		if _, err := io.Copy(part, f.Reader); err != nil {
			return nil, fmt.Errorf("copy file %q: %w", name, err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("finalize multipart body: %w", err)
	}

	if err := c.doRaw(ctx, http.MethodPost, path, mw.FormDataContentType(), &buf, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) Message(ctx context.Context, channelID, messageID string) (*Message, error) {
	var message Message
	path := "/channels/" + channelID + "/messages/" + messageID
	if err := c.do(ctx, http.MethodGet, path, nil, &message); err != nil {
		return nil, err
	}
	return &message, nil
}

func (c *Client) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	path := "/channels/" + channelID + "/messages/" + messageID
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

func (c *Client) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	path := fmt.Sprintf("/channels/%s/messages/%s/reactions/%s/@me",
		channelID, messageID, url.PathEscape(emoji))
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// DownloadAttachment fetches attachment bytes from the CDN URL carried on
// the attachment itself, which lives outside the API base path.
func (c *Client) DownloadAttachment(ctx context.Context, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build attachment request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download attachment: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, &Error{Status: resp.StatusCode, Message: "attachment download failed"}
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read attachment body: %w", err)
	}
	return data, nil
}
