package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Lark posts text messages to a Lark (Feishu) bot webhook, optionally signed
type Lark struct {
	client  *http.Client
	webhook string
	secret  string
	now     func() time.Time
}

// NewLark creates a Lark transport. An empty secret disables signing.
func NewLark(client *http.Client, webhook, secret string) *Lark {
	return &Lark{client: client, webhook: webhook, secret: secret, now: time.Now}
}

func (l *Lark) Name() string { return "lark" }

type larkText struct {
	Text string `json:"text"`
}

type larkRequest struct {
	MsgType   string   `json:"msg_type"`
	Content   larkText `json:"content"`
	Timestamp string   `json:"timestamp,omitempty"`
	Sign      string   `json:"sign,omitempty"`
}

type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// larkSign computes the bot signature: HMAC-SHA256 keyed with
// "timestamp\nsecret" over an empty message, base64 encoded
func larkSign(timestamp int64, secret string) string {
	mac := hmac.New(sha256.New, []byte(strconv.FormatInt(timestamp, 10)+"\n"+secret))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func (l *Lark) Send(ctx context.Context, msg Message) error {
	req := larkRequest{MsgType: "text", Content: larkText{Text: msg.Text()}}
	if l.secret != "" {
		ts := l.now().Unix()
		req.Timestamp = strconv.FormatInt(ts, 10)
		req.Sign = larkSign(ts, l.secret)
	}

	var resp larkResponse
	if err := postJSON(ctx, l.client, l.webhook, req, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return fmt.Errorf("%w: code %d: %s", ErrRejected, resp.Code, resp.Msg)
	}
	return nil
}

// DefaultTelegramAPI is the Bot API base URL
const DefaultTelegramAPI = "https://api.telegram.org"

// Telegram sends Markdown messages through a bot
type Telegram struct {
	client  *http.Client
	apiBase string
	token   string
	chatID  string
}

// NewTelegram creates a Telegram transport. An empty apiBase uses the public API.
func NewTelegram(client *http.Client, apiBase, token, chatID string) *Telegram {
	if apiBase == "" {
		apiBase = DefaultTelegramAPI
	}
	return &Telegram{client: client, apiBase: strings.TrimSuffix(apiBase, "/"), token: token, chatID: chatID}
}

func (t *Telegram) Name() string { return "telegram" }

type telegramRequest struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (t *Telegram) Send(ctx context.Context, msg Message) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.apiBase, t.token)
	req := telegramRequest{ChatID: t.chatID, Text: msg.Text(), ParseMode: "Markdown"}

	var resp telegramResponse
	if err := postJSON(ctx, t.client, url, req, &resp); err != nil {
		return err
	}
	if !resp.OK {
		return fmt.Errorf("%w: %s", ErrRejected, resp.Description)
	}
	return nil
}

// WechatWork posts text messages to a WeChat Work group bot
type WechatWork struct {
	client  *http.Client
	webhook string
}

// NewWechatWork creates a WeChat Work transport
func NewWechatWork(client *http.Client, webhook string) *WechatWork {
	return &WechatWork{client: client, webhook: webhook}
}

func (w *WechatWork) Name() string { return "wechat_work" }

type wechatRequest struct {
	MsgType string `json:"msgtype"`
	Text    struct {
		Content string `json:"content"`
	} `json:"text"`
}

type wechatResponse struct {
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

func (w *WechatWork) Send(ctx context.Context, msg Message) error {
	req := wechatRequest{MsgType: "text"}
	req.Text.Content = msg.Text()

	var resp wechatResponse
	if err := postJSON(ctx, w.client, w.webhook, req, &resp); err != nil {
		return err
	}
	if resp.ErrCode != 0 {
		return fmt.Errorf("%w: errcode %d: %s", ErrRejected, resp.ErrCode, resp.ErrMsg)
	}
	return nil
}

// DefaultBarkServer is the public Bark server
const DefaultBarkServer = "https://api.day.app"

// BarkOptions configures a Bark push
type BarkOptions struct {
	ServerURL string
	DeviceKey string
	Group     string
	Sound     string
	Level     string
	Icon      string
	URL       string
}

// Bark sends iOS push notifications through a Bark server
type Bark struct {
	client *http.Client
	opts   BarkOptions
}

// NewBark creates a Bark transport
func NewBark(client *http.Client, opts BarkOptions) *Bark {
	if opts.ServerURL == "" {
		opts.ServerURL = DefaultBarkServer
	}
	opts.ServerURL = strings.TrimSuffix(opts.ServerURL, "/")
	if opts.Group == "" {
		opts.Group = "crtm"
	}
	if opts.Sound == "" {
		opts.Sound = "default"
	}
	return &Bark{client: client, opts: opts}
}

func (b *Bark) Name() string { return "bark" }

type barkRequest struct {
	DeviceKey string `json:"device_key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Group     string `json:"group"`
	Sound     string `json:"sound"`
	Level     string `json:"level,omitempty"`
	Icon      string `json:"icon,omitempty"`
	URL       string `json:"url,omitempty"`
}

type barkResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (b *Bark) Send(ctx context.Context, msg Message) error {
	title := msg.Title
	if title == "" {
		title = DefaultTitle
	}
	req := barkRequest{
		DeviceKey: b.opts.DeviceKey,
		Title:     title,
		Body:      msg.Content,
		Group:     b.opts.Group,
		Sound:     b.opts.Sound,
		Level:     b.opts.Level,
		Icon:      b.opts.Icon,
		URL:       b.opts.URL,
	}

	var resp barkResponse
	err := postJSON(ctx, b.client, b.opts.ServerURL+"/push", req, &resp)
	if err == nil && resp.Code == http.StatusOK {
		return nil
	}
	if err == nil {
		err = fmt.Errorf("%w: code %d: %s", ErrRejected, resp.Code, resp.Message)
	}

	// HTTP status failures are final; anything else retries through the GET API
	var statusErr *StatusError
	if errors.As(err, &statusErr) || ctx.Err() != nil {
		return err
	}
	if fallbackErr := b.sendGet(ctx, req); fallbackErr != nil {
		return fmt.Errorf("%w (GET fallback: %v)", err, fallbackErr)
	}
	return nil
}

// sendGet pushes through GET {server}/{key}/{title}/{body}?options
func (b *Bark) sendGet(ctx context.Context, req barkRequest) error {
	params := url.Values{}
	for key, value := range map[string]string{
		"group": req.Group,
		"sound": req.Sound,
		"level": req.Level,
		"icon":  req.Icon,
		"url":   req.URL,
	} {
		if value != "" {
			params.Set(key, value)
		}
	}

	target := fmt.Sprintf("%s/%s/%s/%s?%s", b.opts.ServerURL,
		url.PathEscape(req.DeviceKey), url.PathEscape(req.Title), url.PathEscape(req.Body), params.Encode())
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &StatusError{StatusCode: resp.StatusCode}
	}
	return nil
}
