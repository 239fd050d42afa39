package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"

	"github.com/go-telegram/bot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiCall struct {
	method    string
	text      string
	messageID string
}

// fakeAPI answers Bot API calls with a message whose id increments from 500.
type fakeAPI struct {
	mu     sync.Mutex
	calls  []apiCall
	nextID int
	fail   map[string]bool
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseMultipartForm(1 << 20)
	method := path.Base(r.URL.Path)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, apiCall{method: method, text: r.FormValue("text"), messageID: r.FormValue("message_id")})

	w.Header().Set("Content-Type", "application/json")
	if f.fail[method] {
		fmt.Fprint(w, `{"ok":false,"error_code":400,"description":"Bad Request: message can't be edited"}`)
		return
	}
	f.nextID++
	fmt.Fprintf(w, `{"ok":true,"result":{"message_id":%d,"date":0,"chat":{"id":5,"type":"private"}}}`, 500+f.nextID)
}

func (f *fakeAPI) methods() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.method
	}
	return out
}

func newTestBot(t *testing.T, api *fakeAPI) *bot.Bot {
	t.Helper()
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	b, err := bot.New("123:test", bot.WithServerURL(srv.URL), bot.WithSkipGetMe())
	require.NoError(t, err)
	return b
}

func TestStatusSinkEditsProgressMessage(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api)
	ctx := context.Background()

	sink := newStatusSink(ctx, b, 5, "🔄 Merging files…")
	require.NoError(t, sink.SendText(ctx, 5, "✅ Done."))
	require.NoError(t, sink.SendText(ctx, 5, "second"))

	assert.Equal(t, []string{"sendMessage", "editMessageText", "sendMessage"}, api.methods())
	assert.Equal(t, "501", api.calls[1].messageID, "the status message is edited")
	assert.Equal(t, "✅ Done.", api.calls[1].text)
	assert.Equal(t, "second", api.calls[2].text)
}

func TestStatusSinkFallsBackWhenEditFails(t *testing.T) {
	api := &fakeAPI{fail: map[string]bool{"editMessageText": true}}
	b := newTestBot(t, api)
	ctx := context.Background()

	sink := newStatusSink(ctx, b, 5, "✂️ Splitting…")
	require.NoError(t, sink.SendText(ctx, 5, "📏 Invalid page range: 5-20."))

	methods := api.methods()
	assert.Equal(t, "sendMessage", methods[len(methods)-1])
	assert.Equal(t, "📏 Invalid page range: 5-20.", api.calls[len(api.calls)-1].text)
}

func TestChatSinkReceiptReturnsMessageID(t *testing.T) {
	api := &fakeAPI{}
	b := newTestBot(t, api)

	id, err := chatSink{bot: b}.SendReceipt(context.Background(), 5, "📄 Saved as *#1*")
	require.NoError(t, err)
	assert.Equal(t, 501, id)
}
