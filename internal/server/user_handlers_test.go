package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"treematch/internal/notifications"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type likeBody struct {
	Created  bool `json:"created"`
	IsMutual bool `json:"is_mutual"`
}

func TestUserHandlers_LikeMatchBlock(t *testing.T) {
	e := newTestEnv(t)
	root := e.setupRoot()
	a := e.register("Avi Cohen", "avi@example.com", root.User.ReferralCode)
	b := e.register("Bat Levi", "bat@example.com", root.User.ReferralCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sub := e.rdb.Subscribe(ctx, notifications.UserChannel(a.User.ID))
	defer func() { _ = sub.Close() }()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	var like likeBody
	e.doJSON(http.MethodPost, fmt.Sprintf("/api/users/%d/like", b.User.ID), a.Token, nil, http.StatusCreated, &like)
	assert.Equal(t, likeBody{Created: true, IsMutual: false}, like)

	e.expectError(http.MethodPost, fmt.Sprintf("/api/users/%d/like", b.User.ID), a.Token, nil, http.StatusConflict, "ALREADY_LIKED")
	e.expectError(http.MethodPost, fmt.Sprintf("/api/users/%d/like", a.User.ID), a.Token, nil, http.StatusConflict, "SELF_REFERENCE")
	e.expectError(http.MethodPost, "/api/users/99999/like", a.Token, nil, http.StatusNotFound, "TARGET_NOT_FOUND")
	e.expectError(http.MethodPost, "/api/users/abc/like", a.Token, nil, http.StatusBadRequest, "")

	e.doJSON(http.MethodPost, fmt.Sprintf("/api/users/%d/like", a.User.ID), b.Token, nil, http.StatusCreated, &like)
	assert.True(t, like.IsMutual)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var event notifications.Event
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
	assert.Equal(t, notifications.EventMatch, event.Type)
	assert.Equal(t, b.User.ID, event.OtherID)

	var matches struct {
		Matches []struct {
			ID       uint   `json:"id"`
			FullName string `json:"full_name"`
		} `json:"matches"`
	}
	e.doJSON(http.MethodGet, "/api/users/matches", a.Token, nil, http.StatusOK, &matches)
	require.Len(t, matches.Matches, 1)
	assert.Equal(t, b.User.ID, matches.Matches[0].ID)
	assert.Equal(t, "Bat Levi", matches.Matches[0].FullName)

	var profile struct {
		ID        uint `json:"id"`
		LikedByMe bool `json:"liked_by_me"`
		IsMutual  bool `json:"is_mutual"`
	}
	e.doJSON(http.MethodGet, fmt.Sprintf("/api/users/%d", b.User.ID), a.Token, nil, http.StatusOK, &profile)
	assert.True(t, profile.LikedByMe)
	assert.True(t, profile.IsMutual)

	e.doJSON(http.MethodPost, fmt.Sprintf("/api/users/%d/block", b.User.ID), a.Token, nil, http.StatusCreated, nil)
	e.expectError(http.MethodPost, fmt.Sprintf("/api/users/%d/block", b.User.ID), a.Token, nil, http.StatusConflict, "ALREADY_BLOCKED")

	e.doJSON(http.MethodGet, "/api/users/matches", a.Token, nil, http.StatusOK, &matches)
	assert.Empty(t, matches.Matches)
	e.expectError(http.MethodGet, fmt.Sprintf("/api/users/%d", a.User.ID), b.Token, nil, http.StatusNotFound, "TARGET_NOT_FOUND")

	var blocked struct {
		Blocked []struct {
			ID uint `json:"id"`
		} `json:"blocked"`
	}
	e.doJSON(http.MethodGet, "/api/users/blocked", a.Token, nil, http.StatusOK, &blocked)
	require.Len(t, blocked.Blocked, 1)
	assert.Equal(t, b.User.ID, blocked.Blocked[0].ID)

	e.doJSON(http.MethodDelete, fmt.Sprintf("/api/users/%d/block", b.User.ID), a.Token, nil, http.StatusNoContent, nil)
	e.expectError(http.MethodDelete, fmt.Sprintf("/api/users/%d/block", b.User.ID), a.Token, nil, http.StatusNotFound, "NOT_BLOCKED")
}

func TestUserHandlers_Search(t *testing.T) {
	e := newTestEnv(t)
	root := e.setupRoot()
	a := e.register("Avi Cohen", "avi@example.com", root.User.ReferralCode)
	e.register("Bat Levi", "bat@example.com", a.User.ReferralCode)
	e.register("Dana Avraham", "dana@example.com", a.User.ReferralCode)

	var res struct {
		Users []struct {
			ID         uint   `json:"id"`
			FullName   string `json:"full_name"`
			ReferredBy *struct {
				ID uint `json:"id"`
			} `json:"referred_by"`
		} `json:"users"`
		Pagination struct {
			Total   int64 `json:"total"`
			PerPage int   `json:"per_page"`
		} `json:"pagination"`
	}
	e.doJSON(http.MethodGet, "/api/users/search?name=lev", a.Token, nil, http.StatusOK, &res)
	require.Len(t, res.Users, 1)
	assert.Equal(t, "Bat Levi", res.Users[0].FullName)
	require.NotNil(t, res.Users[0].ReferredBy)
	assert.Equal(t, a.User.ID, res.Users[0].ReferredBy.ID)

	e.doJSON(http.MethodGet, "/api/users/search?per_page=2", a.Token, nil, http.StatusOK, &res)
	assert.Len(t, res.Users, 2)
	assert.Equal(t, int64(3), res.Pagination.Total, "root, Bat and Dana; never the viewer")

	e.expectError(http.MethodGet, "/api/users/search?min_age=abc", a.Token, nil, http.StatusBadRequest, "INVALID_FILTER")
	e.expectError(http.MethodGet, "/api/users/search?gender=robot", a.Token, nil, http.StatusBadRequest, "INVALID_FILTER")
}
