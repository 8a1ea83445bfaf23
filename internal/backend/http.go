package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"time"

	"marketchat/internal/common"
)

// HTTPClient talks to the marketchat service over REST for request/response
// calls and WebSocket for channel subscriptions.
type HTTPClient struct {
	baseURL string
	wsURL   string
	token   string
	http    *http.Client

	mu   sync.Mutex
	subs map[string]*subscription
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient returns a client bound to the given service endpoints. The
// token authenticates every call and carries the session identity.
func NewHTTPClient(baseURL, wsURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		wsURL:   wsURL,
		token:   token,
		http:    &http.Client{Timeout: 15 * time.Second},
		subs:    make(map[string]*subscription),
	}
}

func (c *HTTPClient) GetMessages(ctx context.Context, conversationID string) ([]common.Message, error) {
	var messages []common.Message
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages", c.baseURL, conversationID)
	if err := c.doJSON(ctx, http.MethodGet, url, nil, &messages); err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	return messages, nil
}

func (c *HTTPClient) SendMessage(ctx context.Context, req SendMessageRequest) (*common.Message, error) {
	var msg common.Message
	url := fmt.Sprintf("%s/api/v1/conversations/%s/messages", c.baseURL, req.ConversationID)
	if err := c.doJSON(ctx, http.MethodPost, url, req, &msg); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}
	return &msg, nil
}

func (c *HTTPClient) MarkMessagesAsRead(ctx context.Context, conversationID, readerID string) error {
	url := fmt.Sprintf("%s/api/v1/conversations/%s/read", c.baseURL, conversationID)
	body := map[string]string{"reader_id": readerID}
	if err := c.doJSON(ctx, http.MethodPost, url, body, nil); err != nil {
		return fmt.Errorf("%w: %v", common.ErrMarkReadFailed, err)
	}
	return nil
}

func (c *HTTPClient) SendTyping(ctx context.Context, status common.TypingStatus) error {
	url := fmt.Sprintf("%s/api/v1/conversations/%s/typing", c.baseURL, status.ConversationID)
	return c.doJSON(ctx, http.MethodPost, url, status, nil)
}

func (c *HTTPClient) SubscribeToMessages(ctx context.Context, conversationID string, fn MessageCallback) (string, error) {
	channel := MessageChannel(conversationID)
	wsPath := fmt.Sprintf("%s/api/v1/conversations/%s/ws/messages", c.wsURL, conversationID)
	deliver := func(data []byte) {
		var event common.MessageEvent
		if err := json.Unmarshal(data, &event); err != nil {
			log.Printf("backend: dropping undecodable message event on %s: %v", channel, err)
			return
		}
		fn(event)
	}
	return channel, c.addSubscription(ctx, channel, wsPath, deliver)
}

func (c *HTTPClient) SubscribeToTyping(ctx context.Context, conversationID string, fn TypingCallback) (string, error) {
	channel := TypingChannel(conversationID)
	wsPath := fmt.Sprintf("%s/api/v1/conversations/%s/ws/typing", c.wsURL, conversationID)
	deliver := func(data []byte) {
		var status common.TypingStatus
		if err := json.Unmarshal(data, &status); err != nil {
			log.Printf("backend: dropping undecodable typing event on %s: %v", channel, err)
			return
		}
		fn(status)
	}
	return channel, c.addSubscription(ctx, channel, wsPath, deliver)
}

func (c *HTTPClient) Unsubscribe(channel string) error {
	c.mu.Lock()
	sub, ok := c.subs[channel]
	delete(c.subs, channel)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	sub.close()
	return nil
}

// addSubscription reserves the channel slot first and dials outside the
// lock, so one slow dial never stalls subscribes on other channels.
func (c *HTTPClient) addSubscription(ctx context.Context, channel, wsPath string, deliver func([]byte)) error {
	sub := newSubscription(channel, wsPath, c.token, deliver)

	c.mu.Lock()
	if _, exists := c.subs[channel]; exists {
		c.mu.Unlock()
		return common.ErrDuplicateSubscription
	}
	c.subs[channel] = sub
	c.mu.Unlock()

	if err := sub.start(ctx); err != nil {
		c.mu.Lock()
		if c.subs[channel] == sub {
			delete(c.subs, channel)
		}
		c.mu.Unlock()
		return err
	}
	return nil
}

// doJSON issues one JSON request and decodes the response into out when out
// is non-nil.
func (c *HTTPClient) doJSON(ctx context.Context, method, url string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("backend returned %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
