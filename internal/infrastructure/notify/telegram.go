package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// telegram 单条消息上限 4096 字符
const telegramMaxRunes = 4000

// Telegram Bot API 客户端，既用于告警也用于指令回复
type Telegram struct {
	apiURL string
	token  string
	chatID int64
	client *http.Client
}

// NewTelegram apiURL 形如 https://api.telegram.org
func NewTelegram(apiURL, token string, chatID int64) *Telegram {
	return &Telegram{
		apiURL: strings.TrimRight(apiURL, "/"),
		token:  token,
		chatID: chatID,
		client: &http.Client{Timeout: 40 * time.Second},
	}
}

// ChatID 配置的会话 id
func (t *Telegram) ChatID() int64 { return t.chatID }

// Notify 发送到配置的会话，失败只记录日志
func (t *Telegram) Notify(ctx context.Context, message string) {
	if err := t.Send(ctx, t.chatID, message); err != nil {
		log.Error().Err(err).Msg("telegram notify failed")
	}
}

// Send sendMessage，超长消息按行切分
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	for _, part := range splitMessage(text, telegramMaxRunes) {
		payload := map[string]any{"chat_id": chatID, "text": part}
		if err := t.call(ctx, "sendMessage", payload, nil); err != nil {
			return err
		}
	}
	return nil
}

// Update getUpdates 返回的单条更新
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

type Message struct {
	Text string `json:"text"`
	Chat struct {
		ID int64 `json:"id"`
	} `json:"chat"`
	From struct {
		ID        int64  `json:"id"`
		FirstName string `json:"first_name"`
	} `json:"from"`
}

// GetUpdates 长轮询拉取 offset 之后的更新
func (t *Telegram) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	payload := map[string]any{"offset": offset, "timeout": int(timeout.Seconds())}
	var updates []Update
	if err := t.call(ctx, "getUpdates", payload, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (t *Telegram) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	endpoint := fmt.Sprintf("%s/bot%s/%s", t.apiURL, t.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var r apiResponse
	if err := json.Unmarshal(raw, &r); err != nil {
		return fmt.Errorf("telegram %s: http %d: %s", method, resp.StatusCode, string(raw))
	}
	if !r.OK {
		return fmt.Errorf("telegram %s: %s", method, r.Description)
	}
	if out != nil && len(r.Result) > 0 {
		return json.Unmarshal(r.Result, out)
	}
	return nil
}

func splitMessage(text string, limit int) []string {
	if len([]rune(text)) <= limit {
		return []string{text}
	}
	var parts []string
	var cur strings.Builder
	curLen := 0
	for _, line := range strings.SplitAfter(text, "\n") {
		n := len([]rune(line))
		if curLen+n > limit && curLen > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
			curLen = 0
		}
		// 单行超长时硬切
		for n > limit {
			r := []rune(line)
			parts = append(parts, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		curLen += n
	}
	if curLen > 0 {
		parts = append(parts, cur.String())
	}
	return parts
}
