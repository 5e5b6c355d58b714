package handler

import (
	"context"
	"io"
	"net"
	"testing"

	"seqstream/internal/pkg/session"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) New(id uuid.UUID, peer string) error {
	return m.Called(id, peer).Error(0)
}

func (m *mockStore) Get(id uuid.UUID) (session.Session, error) {
	args := m.Called(id)
	return args.Get(0).(session.Session), args.Error(1)
}

func (m *mockStore) SetLength(id uuid.UUID, length uint16) error {
	return m.Called(id, length).Error(0)
}

func (m *mockStore) Advance(id uuid.UUID, position uint16) error {
	return m.Called(id, position).Error(0)
}

func (m *mockStore) Clear(id uuid.UUID) error {
	return m.Called(id).Error(0)
}

func (m *mockStore) List() []session.Session {
	return m.Called().Get(0).([]session.Session)
}

func TestRunRecordsProgress(t *testing.T) {
	id := uuid.New()
	store := &mockStore{}
	store.On("SetLength", id, uint16(3)).Return(nil).Once()
	for pos := uint16(1); pos <= 3; pos++ {
		store.On("Advance", id, pos).Return(nil).Once()
	}
	h, err := NewHandler(WithSessionStore(store), WithSessionID(id))
	require.NoError(t, err)

	srv, cli := net.Pipe()
	done := serve(context.Background(), h, srv)
	_, err = cli.Write([]byte("3\n"))
	require.NoError(t, err)
	_, err = io.ReadAll(cli)
	require.NoError(t, err)

	out := <-done
	require.NoError(t, out.err)
	require.Equal(t, OutcomeCompleted, out.res.Outcome)
	store.AssertExpectations(t)
}

func TestRunStoreFailure(t *testing.T) {
	id := uuid.New()
	store := &mockStore{}
	store.On("SetLength", id, uint16(2)).Return(session.ErrSessionNotFound).Once()
	h, err := NewHandler(WithSessionStore(store), WithSessionID(id))
	require.NoError(t, err)

	srv, cli := net.Pipe()
	defer cli.Close()
	done := serve(context.Background(), h, srv)
	_, err = cli.Write([]byte("2\n"))
	require.NoError(t, err)

	out := <-done
	require.Error(t, out.err)
	require.True(t, errors.Is(out.err, session.ErrSessionNotFound))
	store.AssertExpectations(t)
}
