package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"

	"github.com/jfmyers9/encore/internal/store"
)

var testConcerts = []store.Concert{
	{Artist: "Radiohead", Venue: "O2", City: "London", Country: "United Kingdom", Date: "2030-07-01", URL: "https://tm.example/1"},
	{Artist: "Björk", Venue: "Harpa", City: "Reykjavik", Date: "2030-03-04", Time: "19:30"},
	{Artist: "Air", City: "Paris", Date: "2030-07-01"},
}

func TestFormatConcerts(t *testing.T) {
	got := FormatConcerts(testConcerts)
	want := `New concerts (3):

2030-03-04 19:30  Björk
  Harpa, Reykjavik

2030-07-01  Air
  Paris

2030-07-01  Radiohead
  O2, London, United Kingdom
  https://tm.example/1
`
	if got != want {
		t.Errorf("unexpected message:\n%s\nwant:\n%s", got, want)
	}

	// The input order must not matter.
	reversed := []store.Concert{testConcerts[2], testConcerts[1], testConcerts[0]}
	if FormatConcerts(reversed) != got {
		t.Error("expected stable output regardless of input order")
	}

	if single := FormatConcerts(testConcerts[:1]); !strings.HasPrefix(single, "New concert:\n") {
		t.Errorf("unexpected single header: %q", single)
	}
}

func TestSplitMessage(t *testing.T) {
	text := strings.Repeat("0123456789\n", 10)
	chunks := splitMessage(text, 25)
	if strings.Join(chunks, "") != text {
		t.Error("chunks must reassemble the original text")
	}
	for _, c := range chunks {
		if len(c) > 25 {
			t.Errorf("chunk too long: %d", len(c))
		}
	}

	long := strings.Repeat("x", 60)
	chunks = splitMessage(long, 25)
	if len(chunks) != 3 || strings.Join(chunks, "") != long {
		t.Errorf("unexpected chunks for long line: %q", chunks)
	}
}

func TestSplitMessageEscapedText(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		limit int
	}{
		{"escaped urls", bot.EscapeMarkdown(strings.Repeat("https://tm.example/event-1.html?a=b_c\n", 40)), 100},
		{"escaped long line", bot.EscapeMarkdown(strings.Repeat("a.b-c!", 50)), 31},
		{"multibyte", strings.Repeat("東京ドーム🎸 ", 30), 17},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := splitMessage(tt.text, tt.limit)
			if strings.Join(chunks, "") != tt.text {
				t.Fatal("chunks must reassemble the text")
			}
			for _, c := range chunks {
				if n := textLen(c); n > tt.limit {
					t.Errorf("chunk of %d units exceeds %d: %q", n, tt.limit, c)
				}
				if !utf8.ValidString(c) {
					t.Errorf("chunk splits a rune: %q", c)
				}
				if strings.HasSuffix(c, "\\") && !strings.HasSuffix(c, "\\\\") {
					t.Errorf("chunk ends inside an escape: %q", c)
				}
			}
		})
	}
}

type fakeSender struct {
	sent []*bot.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, params)
	return &models.Message{ID: len(f.sent)}, nil
}

func TestTelegramNotify(t *testing.T) {
	ctx := context.Background()
	user := store.User{ID: 1, ChatID: 4242}

	t.Run("sends escaped markdown", func(t *testing.T) {
		sender := &fakeSender{}
		tg := NewTelegramWithSender(sender)
		if err := tg.Notify(ctx, user, testConcerts); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(sender.sent) != 1 {
			t.Fatalf("expected 1 message, got %d", len(sender.sent))
		}
		msg := sender.sent[0]
		if msg.ChatID != int64(4242) {
			t.Errorf("expected chat id 4242, got %v", msg.ChatID)
		}
		if msg.ParseMode != models.ParseModeMarkdown {
			t.Errorf("unexpected parse mode %q", msg.ParseMode)
		}
		if !strings.Contains(msg.Text, `\(3\)`) {
			t.Errorf("expected markdown to be escaped: %q", msg.Text)
		}
	})

	t.Run("long lists are split after escaping", func(t *testing.T) {
		var many []store.Concert
		for i := 0; i < 200; i++ {
			many = append(many, store.Concert{
				Artist: "Sigur Rós", Venue: "Eldborg (Harpa)", City: "Reykjavík", Date: fmt.Sprintf("2030-01-%02d", i%28+1),
				URL: fmt.Sprintf("https://tm.example/e/%d.html?utm_source=a-b&x=y", i),
			})
		}
		sender := &fakeSender{}
		if err := NewTelegramWithSender(sender).Notify(ctx, user, many); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(sender.sent) < 2 {
			t.Fatalf("expected several messages, got %d", len(sender.sent))
		}
		var joined strings.Builder
		for _, msg := range sender.sent {
			if n := textLen(msg.Text); n > telegramLimit {
				t.Errorf("message of %d units exceeds the limit", n)
			}
			joined.WriteString(msg.Text)
		}
		if joined.String() != bot.EscapeMarkdown(FormatConcerts(many)) {
			t.Error("messages must reassemble the escaped text")
		}
	})

	t.Run("nothing to send", func(t *testing.T) {
		sender := &fakeSender{}
		if err := NewTelegramWithSender(sender).Notify(ctx, user, nil); err != nil {
			t.Fatalf("Notify failed: %v", err)
		}
		if len(sender.sent) != 0 {
			t.Error("expected no messages")
		}
	})

	t.Run("missing chat id", func(t *testing.T) {
		err := NewTelegramWithSender(&fakeSender{}).Notify(ctx, store.User{ID: 2}, testConcerts)
		if err == nil {
			t.Error("expected error for user without chat id")
		}
	})

	t.Run("send failure", func(t *testing.T) {
		sender := &fakeSender{err: errors.New("forbidden: bot was blocked by the user")}
		if err := NewTelegramWithSender(sender).Notify(ctx, user, testConcerts); err == nil {
			t.Error("expected send error")
		}
	})
}

func TestNewTelegramRequiresToken(t *testing.T) {
	if _, err := NewTelegram(""); err == nil {
		t.Error("expected error for empty token")
	}
}

func TestWebhookNotify(t *testing.T) {
	var got WebhookRequestBody
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected content type %q", r.Header.Get("Content-Type"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	wh, err := NewWebhook(server.URL, nil)
	if err != nil {
		t.Fatalf("NewWebhook failed: %v", err)
	}
	if err := wh.Notify(context.Background(), store.User{Username: "ana"}, testConcerts); err != nil {
		t.Fatalf("Notify failed: %v", err)
	}
	if got.Content != got.Body || !strings.HasPrefix(got.Content, "@ana New concerts (3)") {
		t.Errorf("unexpected payload %+v", got)
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer failing.Close()
	wh, _ = NewWebhook(failing.URL, nil)
	if err := wh.Notify(context.Background(), store.User{}, testConcerts); err == nil {
		t.Error("expected error for 502 response")
	}

	if _, err := NewWebhook("", nil); err == nil {
		t.Error("expected error for empty url")
	}
}

type countingNotifier struct {
	calls int
	err   error
}

func (c *countingNotifier) Notify(ctx context.Context, user store.User, concerts []store.Concert) error {
	c.calls++
	return c.err
}

func TestMulti(t *testing.T) {
	errA := errors.New("a failed")
	a := &countingNotifier{err: errA}
	b := &countingNotifier{}

	err := Multi{a, b}.Notify(context.Background(), store.User{}, testConcerts)
	if !errors.Is(err, errA) {
		t.Errorf("expected joined error to contain errA, got %v", err)
	}
	if a.calls != 1 || b.calls != 1 {
		t.Errorf("expected every notifier to be called, got %d and %d", a.calls, b.calls)
	}
}
