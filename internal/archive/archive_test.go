// ABOUTME: Tests for the planning conversation archive
// ABOUTME: Covers write-once saves and the existence-hiding lookup

package archive

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/careeros/compass/internal/auth"
	"github.com/careeros/compass/internal/docstore"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	store, err := docstore.NewSQLiteStore(":memory:", docstore.Schema{Collection})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return New(store, nil)
}

func caller(subject string) *auth.Identity {
	return &auth.Identity{Subject: subject}
}

func TestSaveRequiresIdentity(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Save(context.Background(), nil, SaveRequest{ConversationID: "c-1"})
	assert.ErrorIs(t, err, auth.ErrUnauthorized)
}

func TestSaveRequiresConversationID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Save(context.Background(), caller("user-1"), SaveRequest{Title: "untitled"})
	assert.Error(t, err)
}

func TestSaveAndLookupRoundTrip(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	meta := json.RawMessage(`{"tags":["career-change"],"score":0.92}`)
	id, err := svc.Save(ctx, caller("user-1"), SaveRequest{
		ConversationID:   "conv-abc",
		Title:            "Five year plan",
		FullConversation: "user: where do I start?\nassistant: ...",
		Metadata:         meta,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	conv, err := svc.GetByConversationID(ctx, caller("user-1"), "conv-abc")
	require.NoError(t, err)
	require.NotNil(t, conv)
	assert.Equal(t, id, conv.ID)
	assert.Equal(t, "user-1", conv.OwnerID)
	assert.Equal(t, "Five year plan", conv.Title)
	assert.JSONEq(t, string(meta), string(conv.Metadata))
}

func TestHistoryNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, cid := range []string{"c-1", "c-2", "c-3"} {
		_, err := svc.Save(ctx, caller("user-1"), SaveRequest{ConversationID: cid, Title: cid})
		require.NoError(t, err)
	}
	_, err := svc.Save(ctx, caller("user-2"), SaveRequest{ConversationID: "other", Title: "other"})
	require.NoError(t, err)

	convs, err := svc.History(ctx, caller("user-1"))
	require.NoError(t, err)
	require.Len(t, convs, 3)
	for i := 1; i < len(convs); i++ {
		assert.False(t, convs[i].CreatedAt.After(convs[i-1].CreatedAt), "expected newest-first")
	}
}

func TestHistoryAnonymous(t *testing.T) {
	svc := newTestService(t)

	convs, err := svc.History(context.Background(), nil)
	require.NoError(t, err)
	assert.NotNil(t, convs)
	assert.Empty(t, convs)
}

func TestLookupHidesExistence(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	_, err := svc.Save(ctx, caller("user-1"), SaveRequest{ConversationID: "conv-abc"})
	require.NoError(t, err)

	// A different user, a missing record, and an anonymous caller all get
	// the same answer.
	conv, err := svc.GetByConversationID(ctx, caller("user-2"), "conv-abc")
	require.NoError(t, err)
	assert.Nil(t, conv)

	conv, err = svc.GetByConversationID(ctx, caller("user-1"), "no-such-conversation")
	require.NoError(t, err)
	assert.Nil(t, conv)

	conv, err = svc.GetByConversationID(ctx, nil, "conv-abc")
	require.NoError(t, err)
	assert.Nil(t, conv)
}
