package main

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/opd-ai/peernotes/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, c *fakeClient, line string) (string, bool, error) {
	t.Helper()
	var out bytes.Buffer
	quit, err := execute(context.Background(), c, line, &out)
	return out.String(), quit, err
}

func TestExecuteSend(t *testing.T) {
	c := &fakeClient{}
	out, quit, err := run(t, c, "send general hello there")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "id-send\n", out)
	assert.Equal(t, []sendCall{{"general", "hello there"}}, c.sends)

	_, _, err = run(t, c, "send general")
	assert.Error(t, err)
}

func TestExecuteBoardCommands(t *testing.T) {
	c := &fakeClient{}

	_, _, err := run(t, c, "post title some body")
	require.NoError(t, err)
	_, _, err = run(t, c, "vote p1")
	require.NoError(t, err)
	_, _, err = run(t, c, "comment p1 agreed")
	require.NoError(t, err)

	assert.Equal(t, []sendCall{{"title", "some body"}}, c.posts)
	assert.Equal(t, []string{"p1"}, c.votes)
	assert.Equal(t, []sendCall{{"p1", "agreed"}}, c.comments)
}

func TestExecuteAddContact(t *testing.T) {
	c := &fakeClient{}
	_, _, err := run(t, c, "add aa bb my friend")
	require.NoError(t, err)
	require.Len(t, c.contacts, 1)
	assert.Equal(t, "my friend", c.contacts[0].Label)

	_, _, err = run(t, c, "add aa")
	assert.Error(t, err)
}

func TestExecuteErrors(t *testing.T) {
	c := &fakeClient{err: errors.New("boom")}
	out, _, err := run(t, c, "vote p1")
	assert.EqualError(t, err, "boom")
	assert.Empty(t, out)

	_, _, err = run(t, c, "read missing")
	assert.Error(t, err)

	_, _, err = run(t, c, "dance")
	assert.ErrorIs(t, err, errUsage)
}

func TestExecuteQuitAndBlank(t *testing.T) {
	c := &fakeClient{}
	_, quit, err := run(t, c, "  ")
	assert.NoError(t, err)
	assert.False(t, quit)

	_, quit, err = run(t, c, "quit")
	assert.NoError(t, err)
	assert.True(t, quit)
}

func TestExecuteListings(t *testing.T) {
	c := &fakeClient{
		read: map[string]bool{"n1": true},
		facts: []store.Fact{{
			ID: "p1", Kind: store.KindPost, From: "abcdef", Channel: "general", Title: "hi",
		}},
	}

	out, _, err := run(t, c, "board")
	require.NoError(t, err)
	assert.Contains(t, out, "#general abcdef: hi [2 votes, 0 comments]")

	_, _, err = run(t, c, "read n1")
	assert.NoError(t, err)

	_, _, err = run(t, c, "connect 127.0.0.1:7400")
	assert.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1:7400"}, c.connected)
}

func TestFormatNote(t *testing.T) {
	f := store.Fact{ID: "n1", Kind: store.KindNote, From: "abc", Body: "yo", TS: 0}
	assert.Equal(t, "n1 1970-01-01T00:00:00Z abc: yo *", formatFact(f))
	f.Read = true
	assert.Equal(t, "n1 1970-01-01T00:00:00Z abc: yo", formatFact(f))
}
