package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bookswap/bookswap/internal/model"
)

func newTestClient(url string) *Client {
	c := NewClient(url, "test-token")
	c.baseDelay = time.Millisecond
	return c
}

func TestClientSendsBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewEncoder(w).Encode([]model.Conversation{})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListChats(context.Background(), "me@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Bearer test-token", gotAuth)
}

func TestClientRetriesTransientFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		json.NewEncoder(w).Encode([]model.Conversation{{ID: 1}})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	chats, err := c.ListChats(context.Background(), "me@example.com")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, 3, attempts)
}

func TestClientDoesNotRetryAuthFailures(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"error": "token expired"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	_, err := c.ListChats(context.Background(), "me@example.com")
	require.Error(t, err)
	assert.True(t, IsAuthError(err))
	assert.Equal(t, 1, attempts)
}

func TestClientSurfacesHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"message": "no such chat"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	err := c.MarkRead(context.Background(), 99)
	require.Error(t, err)

	var httpErr *HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.Equal(t, "no such chat", httpErr.Message)
}

func TestMarkReadPostsChatID(t *testing.T) {
	var got map[string]int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/mark-read", r.URL.Path)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	require.NoError(t, c.MarkRead(context.Background(), 7))
	assert.Equal(t, 7, got["chatId"])
}

func TestSendMessageCarriesMapPin(t *testing.T) {
	var got SendMessageRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		json.NewEncoder(w).Encode(model.Message{ID: "srv-1", ChatID: got.ChatID})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	pin := &model.MapPin{Lat: 52.52, Lng: 13.405, Note: "here"}
	msg, err := c.SendMessage(context.Background(), SendMessageRequest{
		Sender: "me@example.com", Receiver: "alice@example.com",
		Content: "here", ChatID: 7, IsMapPin: true, MapPin: pin,
	})
	require.NoError(t, err)
	assert.Equal(t, "srv-1", msg.ID)
	require.NotNil(t, got.MapPin)
	assert.Equal(t, *pin, *got.MapPin)
}

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		var req LoginRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(LoginResponse{
			Token: "tok-1",
			User:  model.User{Email: req.Email, Name: "Me"},
		})
	}))
	defer srv.Close()

	resp, err := Login(context.Background(), srv.URL, "me@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", resp.Token)
	assert.Equal(t, "me@example.com", resp.User.Email)

	_, err = Login(context.Background(), srv.URL, "me@example.com", "wrong")
	assert.True(t, IsAuthError(err))
}
