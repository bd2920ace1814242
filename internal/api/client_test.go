package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/bz888/sagan/internal/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamDeliversChunksInOrder(t *testing.T) {
	received := make(chan chat.ChatRequest, 1)
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req chat.ChatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		received <- req

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, chunk := range []string{"Hel", "lo"} {
			w.Write([]byte(chunk))
			w.(http.Flusher).Flush()
		}
	}))
	defer proxy.Close()

	client, err := NewClient(proxy.URL)
	require.NoError(t, err)

	session := chat.NewSession("groq")
	session.SetBrowsing(true)
	req, err := session.Submit("hi")
	require.NoError(t, err)

	err = client.Stream(context.Background(), req, session.AppendChunk)
	session.Finish(err)
	require.NoError(t, err)

	got := <-received
	assert.Equal(t, "groq", got.Model)
	assert.True(t, got.IsBrowsing)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "hi", got.Messages[0].Text())

	msgs := session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].Text())
	assert.Equal(t, chat.StatusReady, session.Status())
}

func TestStreamReturnsStatusError(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":"rate limited"}`))
	}))
	defer proxy.Close()

	client, err := NewClient(proxy.URL)
	require.NoError(t, err)

	var chunks []string
	err = client.Stream(context.Background(), chat.ChatRequest{Model: "groq"}, func(s string) {
		chunks = append(chunks, s)
	})

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusTooManyRequests, statusErr.Code)
	assert.Equal(t, `{"error":"rate limited"}`, statusErr.Body)
	assert.Contains(t, err.Error(), "429")
	assert.Empty(t, chunks)
}

func TestStreamUnreachableProxy(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	client, err := NewClient("http://" + addr)
	require.NoError(t, err)

	err = client.Stream(context.Background(), chat.ChatRequest{}, func(string) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "send request")

	assert.Error(t, client.Status(context.Background()))
}

func TestStreamKeepsRunesWhole(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data := []byte("héllo ✓")
		// split inside both multi-byte runes
		for _, part := range [][]byte{data[:2], data[2:9], data[9:]} {
			w.Write(part)
			w.(http.Flusher).Flush()
		}
	}))
	defer proxy.Close()

	client, err := NewClient(proxy.URL)
	require.NoError(t, err)

	var b strings.Builder
	err = client.Stream(context.Background(), chat.ChatRequest{}, func(s string) {
		assert.True(t, utf8.ValidString(s), "chunk %q", s)
		b.WriteString(s)
	})
	require.NoError(t, err)
	assert.Equal(t, "héllo ✓", b.String())
}

func TestStatus(t *testing.T) {
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/status", r.URL.Path)
		w.Write([]byte(`{"port_working":true,"server_working":true}`))
	}))
	defer proxy.Close()

	client, err := NewClient(proxy.URL)
	require.NoError(t, err)
	assert.NoError(t, client.Status(context.Background()))
}

func TestNewClientValidatesURL(t *testing.T) {
	_, err := NewClient("localhost:3000")
	assert.Error(t, err)

	_, err = NewClient("http://localhost:3000")
	assert.NoError(t, err)
}

func TestUTF8Chunker(t *testing.T) {
	c := newUTF8Chunker()
	euro := []byte("€") // three bytes

	assert.Equal(t, "a", c.feed(append([]byte("a"), euro[0])))
	assert.Equal(t, "", c.feed(euro[1:2]))
	assert.Equal(t, "€b", c.feed(append(euro[2:], 'b')))
	assert.Equal(t, "", c.flush())

	assert.Equal(t, "", c.feed(euro[:1]))
	assert.Equal(t, string(euro[:1]), c.flush(), "a dangling partial rune is flushed at the end")
}
