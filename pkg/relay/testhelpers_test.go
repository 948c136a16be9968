// Copyright 2024-2026 Aiku AI

package relay

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/aiku/guildrelay/pkg/platform"
	"github.com/aiku/guildrelay/pkg/store"
)

func notFound() *platform.Error {
	return &platform.Error{Status: http.StatusNotFound, Code: platform.CodeUnknownChannel, Message: "not found"}
}

// sentCall records one delivery the fake platform accepted.
type sentCall struct {
	ChannelID  string
	ViaWebhook bool
	Content    string
	Username   string
	AvatarURL  string
	FileNames  []string
	MessageID  string
}

type reactionCall struct {
	ChannelID string
	MessageID string
	Emoji     string
}

type deleteCall struct {
	ChannelID string
	MessageID string
}

// fakeAPI is an in-memory platform.API with canned data, call recording and
// per-channel failure injection.
type fakeAPI struct {
	mu sync.Mutex

	channels    map[string]*platform.Channel
	users       map[string]*platform.User
	members     map[string][]platform.Member
	webhooks    map[string][]platform.Webhook
	attachments map[string][]byte
	messages    map[string]*platform.Message

	// failOnce returns the error on the first delivery to a channel, then
	// clears itself. failAlways fails every delivery.
	failOnce   map[string]error
	failAlways map[string]error
	deleteErr  map[string]error

	nextID    int
	sent      []sentCall
	reactions []reactionCall
	deleted   []deleteCall
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		channels:    make(map[string]*platform.Channel),
		users:       make(map[string]*platform.User),
		members:     make(map[string][]platform.Member),
		webhooks:    make(map[string][]platform.Webhook),
		attachments: make(map[string][]byte),
		messages:    make(map[string]*platform.Message),
		failOnce:    make(map[string]error),
		failAlways:  make(map[string]error),
		deleteErr:   make(map[string]error),
	}
}

var _ platform.API = (*fakeAPI)(nil)

func (f *fakeAPI) Community(_ context.Context, communityID string) (*platform.Community, error) {
	return &platform.Community{ID: communityID, Name: "Community " + communityID}, nil
}

func (f *fakeAPI) Channel(_ context.Context, channelID string) (*platform.Channel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok := f.channels[channelID]; ok {
		return ch, nil
	}
	return nil, notFound()
}

func (f *fakeAPI) User(_ context.Context, userID string) (*platform.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.users[userID]; ok {
		return u, nil
	}
	return nil, notFound()
}

func (f *fakeAPI) SearchMembers(_ context.Context, communityID, query string) ([]platform.Member, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matches []platform.Member
	for _, m := range f.members[communityID] {
		if strings.HasPrefix(m.DisplayName, query) {
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func (f *fakeAPI) ChannelWebhooks(_ context.Context, channelID string) ([]platform.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.webhooks[channelID], nil
}

func (f *fakeAPI) CreateWebhook(_ context.Context, channelID, name string) (*platform.Webhook, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	wh := platform.Webhook{
		ID:        fmt.Sprintf("wh%d", len(f.webhooks[channelID])+1),
		ChannelID: channelID,
		Name:      name,
		Token:     "token",
	}
	f.webhooks[channelID] = append(f.webhooks[channelID], wh)
	return &wh, nil
}

func (f *fakeAPI) ExecuteWebhook(_ context.Context, webhook *platform.Webhook, payload *platform.SendPayload) (*platform.Message, error) {
	return f.deliver(webhook.ChannelID, payload, true)
}

func (f *fakeAPI) SendMessage(_ context.Context, channelID string, payload *platform.SendPayload) (*platform.Message, error) {
	return f.deliver(channelID, payload, false)
}

func (f *fakeAPI) deliver(channelID string, payload *platform.SendPayload, viaWebhook bool) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.failOnce[channelID]; ok {
		delete(f.failOnce, channelID)
		return nil, err
	}
	if err, ok := f.failAlways[channelID]; ok {
		return nil, err
	}

	f.nextID++
	id := fmt.Sprintf("m%d", f.nextID)
	var names []string
	for _, file := range payload.Files {
		_, _ = io.Copy(io.Discard, file.Reader)
		names = append(names, file.Name)
	}
	f.sent = append(f.sent, sentCall{
		ChannelID:  channelID,
		ViaWebhook: viaWebhook,
		Content:    payload.Content,
		Username:   payload.Username,
		AvatarURL:  payload.AvatarURL,
		FileNames:  names,
		MessageID:  id,
	})
	msg := &platform.Message{
		ID:        id,
		ChannelID: channelID,
		Author:    platform.User{ID: "relay-bot", DisplayName: payload.Username, Bot: true},
		Content:   payload.Content,
		WebhookID: "wh",
	}
	f.messages[channelID+"/"+id] = msg
	return msg, nil
}

func (f *fakeAPI) Message(_ context.Context, channelID, messageID string) (*platform.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if msg, ok := f.messages[channelID+"/"+messageID]; ok {
		return msg, nil
	}
	return nil, notFound()
}

func (f *fakeAPI) DeleteMessage(_ context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.deleteErr[messageID]; ok {
		return err
	}
	if _, ok := f.messages[channelID+"/"+messageID]; !ok {
		return notFound()
	}
	delete(f.messages, channelID+"/"+messageID)
	f.deleted = append(f.deleted, deleteCall{ChannelID: channelID, MessageID: messageID})
	return nil
}

func (f *fakeAPI) AddReaction(_ context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions = append(f.reactions, reactionCall{ChannelID: channelID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (f *fakeAPI) DownloadAttachment(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if data, ok := f.attachments[url]; ok {
		return data, nil
	}
	return nil, notFound()
}

func (f *fakeAPI) sentCalls() []sentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]sentCall, len(f.sent))
	copy(cp, f.sent)
	return cp
}

func (f *fakeAPI) sentTo(channelID string) []sentCall {
	var out []sentCall
	for _, call := range f.sentCalls() {
		if call.ChannelID == channelID {
			out = append(out, call)
		}
	}
	return out
}

func (f *fakeAPI) deletedCalls() []deleteCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]deleteCall, len(f.deleted))
	copy(cp, f.deleted)
	return cp
}

func (f *fakeAPI) reactionCalls() []reactionCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]reactionCall, len(f.reactions))
	copy(cp, f.reactions)
	return cp
}

// fakeRegistry is an in-memory Registry.
type fakeRegistry struct {
	mu          sync.Mutex
	order       []string
	communities map[string]*store.Community
	senders     map[string][]string
	receivers   map[string]map[bool]string
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		communities: make(map[string]*store.Community),
		senders:     make(map[string][]string),
		receivers:   make(map[string]map[bool]string),
	}
}

var _ Registry = (*fakeRegistry)(nil)

func (f *fakeRegistry) addCommunity(id, name string, authorized ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.order = append(f.order, id)
	f.communities[id] = &store.Community{ID: id, Name: name, AuthorizedSenders: authorized}
}

func (f *fakeRegistry) addSenderChannel(communityID, channelID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.senders[communityID] = append(f.senders[communityID], channelID)
}

func (f *fakeRegistry) setReceiver(communityID, channelID string, sensitive bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receivers[communityID] == nil {
		f.receivers[communityID] = make(map[bool]string)
	}
	f.receivers[communityID][sensitive] = channelID
}

func (f *fakeRegistry) Get(_ context.Context, communityID string) (*store.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.communities[communityID], nil
}

func (f *fakeRegistry) List(_ context.Context) ([]*store.Community, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*store.Community, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.communities[id])
	}
	return out, nil
}

func (f *fakeRegistry) ListSenderChannels(_ context.Context, communityID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.senders[communityID], nil
}

func (f *fakeRegistry) GetReceiverChannel(_ context.Context, communityID string, sensitive bool) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receivers[communityID][sensitive], nil
}

// fakeLedger is an in-memory Ledger.
type fakeLedger struct {
	mu    sync.Mutex
	links []*store.MessageLink
}

var _ Ledger = (*fakeLedger)(nil)

func (f *fakeLedger) Record(_ context.Context, link *store.MessageLink) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, link)
	return nil
}

func (f *fakeLedger) BySource(_ context.Context, sourceID string) ([]*store.MessageLink, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.MessageLink
	for _, l := range f.links {
		if l.SourceID == sourceID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (f *fakeLedger) DeleteByMirror(_ context.Context, mirrorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.links[:0]
	for _, l := range f.links {
		if l.MirrorID != mirrorID {
			kept = append(kept, l)
		}
	}
	f.links = kept
	return nil
}

func (f *fakeLedger) DeleteBySource(_ context.Context, sourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.links[:0]
	for _, l := range f.links {
		if l.SourceID != sourceID {
			kept = append(kept, l)
		}
	}
	f.links = kept
	return nil
}

func (f *fakeLedger) all() []*store.MessageLink {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := make([]*store.MessageLink, len(f.links))
	copy(cp, f.links)
	return cp
}

func newTestService(api *fakeAPI, registry *fakeRegistry, ledger *fakeLedger) *Service {
	return &Service{
		registry:    registry,
		ledger:      ledger,
		api:         api,
		log:         zerolog.Nop(),
		webhookName: "Relay",
	}
}
