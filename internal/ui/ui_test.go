package ui

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bz888/sagan/internal/api"
	"github.com/bz888/sagan/internal/chat"
	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input string
		want  command
		ok    bool
	}{
		{input: "/help", want: command{name: cmdHelp}, ok: true},
		{input: "  /models \n", want: command{name: cmdModels}, ok: true},
		{input: "/model hf", want: command{name: cmdModel, arg: "hf"}, ok: true},
		{input: "/model   ollama:llama3 ", want: command{name: cmdModel, arg: "ollama:llama3"}, ok: true},
		{input: "/RESEARCH", want: command{name: cmdResearch}, ok: true},
		{input: "/quit", want: command{name: cmdBye}, ok: true},
		{input: "/exit", want: command{name: cmdBye}, ok: true},
		{input: "/usr/bin is a directory?", ok: false},
		{input: "hello /help", ok: false},
		{input: "", ok: false},
	}

	for _, tt := range tests {
		got, ok := parseCommand(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestHelpListsEveryCommand(t *testing.T) {
	help := helpText()
	for _, name := range []string{"/help", "/models", "/model <id>", "/research", "/browse", "/new", "/debug", "/bye"} {
		assert.Contains(t, help, name)
	}
}

func TestValidModel(t *testing.T) {
	assert.True(t, validModel("groq"))
	assert.True(t, validModel("qwen3"))
	assert.True(t, validModel("ollama:llama3:latest"))
	assert.False(t, validModel("ollama:"))
	assert.False(t, validModel("gpt-9"))
	assert.False(t, validModel(""))
}

func TestRenderTranscript(t *testing.T) {
	msgs := []chat.Message{
		{Role: chat.RoleUser, Parts: []chat.Part{chat.TextPart("what is [red]?")}},
		{Role: chat.RoleAssistant, Parts: []chat.Part{chat.TextPart("a tag")}},
	}
	notes := []notice{{at: 0, text: "Using model: hf"}, {at: 2, text: "Deep research on"}}

	out := renderTranscript(msgs, notes)

	model := strings.Index(out, "Using model: hf")
	you := strings.Index(out, "You:")
	bot := strings.Index(out, "Bot:")
	research := strings.Index(out, "Deep research on")
	require.True(t, model >= 0 && you >= 0 && bot >= 0 && research >= 0, out)
	assert.True(t, model < you && you < bot && bot < research, out)
	assert.Contains(t, out, "what is [red[]?")
}

func TestStatusText(t *testing.T) {
	ready := statusText("groq", false, true, chat.StatusReady, nil)
	assert.Contains(t, ready, "model: groq")
	assert.Contains(t, ready, "research: off")
	assert.Contains(t, ready, "browse: on")
	assert.Contains(t, ready, "ready")

	assert.Contains(t, statusText("hf", true, false, chat.StatusStreaming, nil), "streaming")

	failed := statusText("hf", false, false, chat.StatusError, errors.New("proxy returned 500"))
	assert.Contains(t, failed, "[red]error: proxy returned 500[-]")
}

func TestShellCommands(t *testing.T) {
	s := New(Options{Model: "groq"})

	s.runCommand(command{name: cmdResearch})
	s.runCommand(command{name: cmdBrowse})
	assert.True(t, s.session.DeepResearch())
	assert.True(t, s.session.Browsing())

	s.runCommand(command{name: cmdModel, arg: "deepseek"})
	assert.Equal(t, "deepseek", s.session.Model())

	s.runCommand(command{name: cmdModel, arg: "nope"})
	assert.Equal(t, "deepseek", s.session.Model())

	text := s.textView.GetText(true)
	assert.Contains(t, text, "Deep research on")
	assert.Contains(t, text, "Using model: deepseek")
	assert.Contains(t, text, `Unknown model "nope"`)
	assert.Contains(t, s.statusLine.GetText(true), "model: deepseek")

	s.runCommand(command{name: cmdDebug})
	assert.True(t, s.debugShown)
	s.runCommand(command{name: cmdDebug})
	assert.False(t, s.debugShown)

	old := s.session
	s.runCommand(command{name: cmdNew})
	assert.NotSame(t, old, s.session)
	assert.Equal(t, "groq", s.session.Model())
	assert.False(t, s.session.DeepResearch())
	assert.False(t, s.session.Browsing())
	assert.Empty(t, s.notes)
}

func TestModelModalSelects(t *testing.T) {
	s := New(Options{Model: "groq"})

	s.runCommand(command{name: cmdModels})
	assert.True(t, s.pages.HasPage("modelModal"))

	s.selectModel("kimi")
	assert.Equal(t, "kimi", s.session.Model())
}

// fakeProxy answers /api/status and hands /api/chat to handle.
func fakeProxy(t *testing.T, handle http.HandlerFunc) *httptest.Server {
	t.Helper()
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/status" {
			w.Write([]byte(`{"port_working":true,"server_working":true}`))
			return
		}
		handle(w, r)
	}))
	t.Cleanup(proxy.Close)
	return proxy
}

// runShell starts the shell on a simulated terminal and stops it at cleanup.
func runShell(t *testing.T, proxyURL string) (*Shell, tcell.SimulationScreen, <-chan struct{}) {
	t.Helper()
	client, err := api.NewClient(proxyURL)
	require.NoError(t, err)

	s := New(Options{Client: client, Model: "groq"})
	screen := tcell.NewSimulationScreen("UTF-8")
	s.app.SetScreen(screen)
	screen.SetSize(100, 40)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, s.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Error("shell did not stop")
		}
	})
	return s, screen, done
}

func typeLine(screen tcell.SimulationScreen, line string) {
	for _, r := range line {
		screen.InjectKey(tcell.KeyRune, r, tcell.ModNone)
	}
	screen.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
}

type shellState struct {
	session    *chat.Session
	status     chat.Status
	lastErr    error
	messages   []chat.Message
	draft      string
	disabled   bool
	transcript string
}

// snapshot reads the shell from its own event loop.
func snapshot(s *Shell) shellState {
	var st shellState
	s.app.QueueUpdate(func() {
		st = shellState{
			session:    s.session,
			status:     s.session.Status(),
			lastErr:    s.session.LastError(),
			messages:   s.session.Messages(),
			draft:      s.textArea.GetText(),
			disabled:   s.textArea.GetDisabled(),
			transcript: s.textView.GetText(true),
		}
	})
	return st
}

func TestShellStreamsTurn(t *testing.T) {
	proxy := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		assert.Contains(t, string(raw), `"model":"groq"`)
		assert.Contains(t, string(raw), `"hi"`)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Hel"))
		w.(http.Flusher).Flush()
		w.Write([]byte("lo"))
	})
	s, screen, _ := runShell(t, proxy.URL)

	typeLine(screen, "hi")

	require.Eventually(t, func() bool {
		st := snapshot(s)
		return st.status == chat.StatusReady && len(st.messages) == 2
	}, 5*time.Second, 20*time.Millisecond)

	st := snapshot(s)
	assert.Equal(t, chat.RoleUser, st.messages[0].Role)
	assert.Equal(t, "hi", st.messages[0].Text())
	assert.Equal(t, chat.RoleAssistant, st.messages[1].Role)
	assert.Equal(t, "Hello", st.messages[1].Text())
	assert.Empty(t, st.draft)
	assert.False(t, st.disabled)
	assert.Contains(t, st.transcript, "Bot:\nHello")
}

func TestShellFailedTurn(t *testing.T) {
	var calls atomic.Int32
	proxy := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "backend exploded", http.StatusInternalServerError)
	})
	s, screen, _ := runShell(t, proxy.URL)

	typeLine(screen, "hi")

	require.Eventually(t, func() bool {
		return snapshot(s).status == chat.StatusError
	}, 5*time.Second, 20*time.Millisecond)

	st := snapshot(s)
	require.Len(t, st.messages, 1, "no assistant message after a failed turn")
	assert.Equal(t, chat.RoleUser, st.messages[0].Role)
	require.Error(t, st.lastErr)
	assert.Contains(t, st.lastErr.Error(), "500")
	assert.False(t, st.disabled)

	// the input takes the next question
	typeLine(screen, "again")
	assert.Eventually(t, func() bool {
		return calls.Load() == 2
	}, 5*time.Second, 20*time.Millisecond)
}

// hangingProxy never answers a chat turn. It reports every started turn and
// every turn the client abandoned.
func hangingProxy(t *testing.T) (*httptest.Server, <-chan struct{}, <-chan struct{}) {
	t.Helper()
	started := make(chan struct{}, 4)
	aborted := make(chan struct{}, 4)
	proxy := fakeProxy(t, func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-r.Context().Done()
		aborted <- struct{}{}
	})
	return proxy, started, aborted
}

func wait(t *testing.T, ch <-chan struct{}, what string) {
	t.Helper()
	select {
	case <-ch:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for " + what)
	}
}

func TestShellNewThreadDuringTurn(t *testing.T) {
	proxy, started, aborted := hangingProxy(t)
	s, screen, _ := runShell(t, proxy.URL)

	typeLine(screen, "hi")
	wait(t, started, "the turn to reach the proxy")

	before := snapshot(s)
	require.Equal(t, chat.StatusSubmitted, before.status)

	typeLine(screen, "/new")

	require.Eventually(t, func() bool {
		return snapshot(s).session != before.session
	}, 5*time.Second, 20*time.Millisecond, "/new ignored while a turn is in flight")

	after := snapshot(s)
	assert.Equal(t, chat.StatusReady, after.status)
	assert.Empty(t, after.messages)
	assert.Empty(t, after.draft)
	wait(t, aborted, "the abandoned turn to be cancelled")
}

func TestShellCtrlNKeepsDraft(t *testing.T) {
	proxy, started, aborted := hangingProxy(t)
	s, screen, _ := runShell(t, proxy.URL)

	typeLine(screen, "hi")
	wait(t, started, "the turn to reach the proxy")
	old := snapshot(s).session

	// a question typed mid-turn stays in the input
	typeLine(screen, "more")
	screen.InjectKey(tcell.KeyCtrlN, 0, tcell.ModCtrl)
	wait(t, aborted, "the abandoned turn to be cancelled")

	after := snapshot(s)
	assert.NotSame(t, old, after.session)
	assert.Len(t, old.Messages(), 1, "draft was sent while a turn was in flight")
	assert.Equal(t, "more", after.draft)
	assert.Empty(t, after.messages)

	screen.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
	wait(t, started, "the kept draft to be sent")
	assert.Equal(t, "more", snapshot(s).messages[0].Text())
}

func TestShellByeDuringTurn(t *testing.T) {
	proxy, started, aborted := hangingProxy(t)
	_, screen, done := runShell(t, proxy.URL)

	typeLine(screen, "hi")
	wait(t, started, "the turn to reach the proxy")

	typeLine(screen, "/bye")
	wait(t, done, "the shell to exit")
	wait(t, aborted, "the turn to be cancelled")
}
