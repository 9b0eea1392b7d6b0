// SPDX-License-Identifier: GPL-3.0-or-later

package description

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/bassosimone/dbconncore/internal/address"
)

func TestNewDefaultServer(t *testing.T) {
	addr := address.New("localhost", "27017")
	s := NewDefaultServer(addr)
	require.Equal(t, Unknown, s.Type)
	require.Equal(t, Connecting, s.State)
	require.Nil(t, s.LastError)
}

func TestNewServerFromError(t *testing.T) {
	addr := address.New("localhost", "27017")
	err := errors.New("boom")
	tv := TopologyVersion{ProcessID: "p", Counter: 1, Valid: true}

	s := NewServerFromError(addr, err, tv)
	require.Equal(t, Unknown, s.Type)
	require.Equal(t, Disconnected, s.State)
	require.Equal(t, err, s.LastError)
	require.Equal(t, tv, s.TopologyVersion)
}

func TestServerTypeAndStateString(t *testing.T) {
	require.Equal(t, "RSPrimary", ReplicaSetPrimary.String())
	require.Equal(t, "Mongos", ShardRouter.String())
	require.Equal(t, "Unknown", ServerType(99).String())
	require.Equal(t, "Connecting", Connecting.String())
	require.Equal(t, "Disconnected", ServerState(99).String())
}

func TestPublisherSubscribeReceivesCurrentThenUpdates(t *testing.T) {
	addr := address.New("localhost", "27017")
	initial := NewDefaultServer(addr)
	pub := NewPublisher(initial)

	sub, err := pub.Subscribe()
	require.NoError(t, err)
	require.Equal(t, initial, <-sub.C)

	updated := initial
	updated.Type = Standalone
	updated.State = Connected
	pub.Publish(updated)

	require.Equal(t, updated, <-sub.C)
	require.Equal(t, updated, pub.Current())

	sub.Unsubscribe()
	sub.Unsubscribe() // idempotent
}

func TestPublisherSlowSubscriberGetsLatestNotQueue(t *testing.T) {
	addr := address.New("localhost", "27017")
	pub := NewPublisher(NewDefaultServer(addr))
	sub, err := pub.Subscribe()
	require.NoError(t, err)
	<-sub.C // drain initial

	first := Server{Addr: addr, Type: Standalone}
	second := Server{Addr: addr, Type: ReplicaSetPrimary}
	pub.Publish(first)
	pub.Publish(second)

	require.Equal(t, second, <-sub.C)
}

func TestPublisherCloseRejectsNewSubscribersAndClosesExisting(t *testing.T) {
	addr := address.New("localhost", "27017")
	pub := NewPublisher(NewDefaultServer(addr))
	sub, err := pub.Subscribe()
	require.NoError(t, err)

	pub.Close()
	pub.Close() // idempotent

	_, stillOpen := <-sub.C
	require.False(t, stillOpen)

	_, err = pub.Subscribe()
	require.ErrorIs(t, err, ErrPublisherClosed)

	pub.Publish(Server{Addr: addr}) // no-op, must not panic
}
