package session

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/mcdev12/emdrtap/go/internal/docstore"
	"github.com/mcdev12/emdrtap/go/internal/docstore/memory"
	"github.com/mcdev12/emdrtap/go/internal/feedback"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type readerFunc func(ctx context.Context, key string) (docstore.Fields, error)

func (f readerFunc) Get(ctx context.Context, key string) (docstore.Fields, error) {
	return f(ctx, key)
}

func TestParseRole(t *testing.T) {
	t.Parallel()

	cases := map[string]Role{
		"host":  RoleHost,
		"HOST ": RoleHost,
		"guest": RoleGuest,
		"join":  RoleGuest,
		"local": RoleLocal,
		"":      RoleLocal,
	}
	for in, want := range cases {
		got, err := ParseRole(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRole("spectator")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestGenerateHostIDIsFourDigitsInRange(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 5000; i++ {
		id := GenerateHostID(r)
		require.Len(t, string(id), IDLength)
		parsed, err := ParseID(string(id))
		require.NoError(t, err)
		assert.NotEqual(t, ID("9999"), parsed)
	}
}

func TestFormatIDPadsWithZeros(t *testing.T) {
	t.Parallel()

	assert.Equal(t, ID("0000"), FormatID(0))
	assert.Equal(t, ID("0042"), FormatID(42))
	assert.Equal(t, ID("9998"), FormatID(9998))
}

func TestParseIDRejectsMalformed(t *testing.T) {
	t.Parallel()

	for _, bad := range []string{"", "123", "12345", "12a4", " 123", "-123"} {
		_, err := ParseID(bad)
		assert.ErrorIs(t, err, ErrInvalidID, bad)
	}

	id, err := ParseID("0007")
	require.NoError(t, err)
	assert.Equal(t, ID("0007"), id)
}

func TestContextValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Local().Validate())
	assert.NoError(t, Host("1234").Validate())
	assert.NoError(t, Guest("0001").Validate())
	assert.ErrorIs(t, Host("12").Validate(), ErrInvalidID)
	assert.ErrorIs(t, Context{Role: RoleLocal, ID: "1234"}.Validate(), ErrInvalidID)
	assert.ErrorIs(t, Context{Role: Role(9)}.Validate(), ErrInvalidRole)

	assert.Equal(t, "", Local().Key())
	assert.Equal(t, "0042", Guest("0042").Key())
	assert.True(t, Host("0042").IsHost())
	assert.True(t, Guest("0042").IsGuest())
	assert.True(t, Local().IsLocal())
}

func TestJoinExistingSession(t *testing.T) {
	t.Parallel()

	store := memory.New()
	require.NoError(t, store.Set(context.Background(), "4821", docstore.Fields{"isPlaying": false}))
	rec := &feedback.Recorder{}

	sc, err := NewJoiner(store, rec).Join(context.Background(), "4821")
	require.NoError(t, err)
	assert.Equal(t, Guest("4821"), sc)
	assert.Empty(t, rec.Events())
}

func TestJoinMissingSessionPlaysFeedbackOnce(t *testing.T) {
	t.Parallel()

	rec := &feedback.Recorder{}
	j := NewJoiner(memory.New(), rec)

	sc, err := j.Join(context.Background(), "0000")
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, Context{}, sc)
	assert.Equal(t, 1, rec.Count(feedback.KindInvalidSessionID))
	assert.False(t, j.Pending())
}

func TestJoinMalformedIDPlaysFeedback(t *testing.T) {
	t.Parallel()

	rec := &feedback.Recorder{}
	lookups := 0
	j := NewJoiner(readerFunc(func(context.Context, string) (docstore.Fields, error) {
		lookups++
		return nil, nil
	}), rec)

	_, err := j.Join(context.Background(), "12x4")
	assert.ErrorIs(t, err, ErrInvalidID)
	assert.Equal(t, 0, lookups)
	assert.Equal(t, 1, rec.Count(feedback.KindInvalidSessionID))
}

func TestJoinLookupFailureIsWrapped(t *testing.T) {
	t.Parallel()

	boom := errors.New("network down")
	rec := &feedback.Recorder{}
	j := NewJoiner(readerFunc(func(context.Context, string) (docstore.Fields, error) {
		return nil, boom
	}), rec)

	_, err := j.Join(context.Background(), "1111")
	assert.ErrorIs(t, err, ErrLookupFailed)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, rec.Events())
}

func TestJoinRejectsConcurrentAttempt(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	j := NewJoiner(readerFunc(func(context.Context, string) (docstore.Fields, error) {
		close(entered)
		<-release
		return docstore.Fields{}, nil
	}), nil)

	done := make(chan error, 1)
	go func() {
		_, err := j.Join(context.Background(), "2222")
		done <- err
	}()

	<-entered
	assert.True(t, j.Pending())
	_, err := j.Join(context.Background(), "3333")
	assert.ErrorIs(t, err, ErrJoinInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, j.Pending())
}

func TestAllocateSkipsTakenIDs(t *testing.T) {
	t.Parallel()

	taken := map[string]bool{}
	r := rand.New(rand.NewPCG(7, 7))
	probe := rand.New(rand.NewPCG(7, 7))
	first := GenerateHostID(probe)
	second := GenerateHostID(probe)
	taken[string(first)] = true

	a := NewAllocator(readerFunc(func(_ context.Context, key string) (docstore.Fields, error) {
		if taken[key] {
			return docstore.Fields{}, nil
		}
		return nil, docstore.ErrNotFound
	}), r)

	assert.Equal(t, second, a.Allocate(context.Background()))
}

func TestAllocateFallsBackWhenStoreFails(t *testing.T) {
	t.Parallel()

	r := rand.New(rand.NewPCG(3, 4))
	probe := rand.New(rand.NewPCG(3, 4))
	want := GenerateHostID(probe)

	a := NewAllocator(readerFunc(func(context.Context, string) (docstore.Fields, error) {
		return nil, errors.New("offline")
	}), r)

	assert.Equal(t, want, a.Allocate(context.Background()))
}
