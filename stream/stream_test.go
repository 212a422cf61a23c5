package stream_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/planexec/planexec/model"
	"github.com/planexec/planexec/stream"
)

func TestSubscribeReceivesPublishedEvent(t *testing.T) {
	disp := stream.New(4)
	sub := disp.Subscribe("c1")
	defer sub.Close()

	disp.Publish(context.Background(), stream.Event{Type: stream.EventTaskCreated, ConversationID: "c1"})

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stream.EventTaskCreated, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestPublishDropsNewestNonTerminalWhenMailboxFull(t *testing.T) {
	disp := stream.New(1)
	sub := disp.Subscribe("c1")
	defer sub.Close()

	ctx := context.Background()
	disp.Publish(ctx, stream.Event{Type: stream.EventPing, ConversationID: "c1"})
	disp.Publish(ctx, stream.Event{Type: stream.EventPing, ConversationID: "c1"}) // dropped, mailbox full

	first := <-sub.Events()
	assert.Equal(t, stream.EventPing, first.Type)
	select {
	case <-sub.Events():
		t.Fatal("expected the second ping to have been dropped")
	default:
	}
}

func TestPublishAlwaysDeliversTerminalEvent(t *testing.T) {
	disp := stream.New(1)
	sub := disp.Subscribe("c1")
	defer sub.Close()

	ctx := context.Background()
	disp.Publish(ctx, stream.Event{Type: stream.EventPing, ConversationID: "c1"}) // fills mailbox

	done := make(chan struct{})
	go func() {
		disp.Publish(ctx, stream.Event{
			Type: stream.EventStateUpdate, ConversationID: "c1",
			State: &model.AgentState{FinalStatus: model.FinalSuccess},
		})
		close(done)
	}()

	<-sub.Events() // drain the ping, unblocking the terminal publish
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("terminal publish should have completed once the mailbox drained")
	}

	select {
	case ev := <-sub.Events():
		assert.Equal(t, stream.EventStateUpdate, ev.Type)
	case <-time.After(time.Second):
		t.Fatal("expected the terminal event to be delivered")
	}
}

func TestCloseUnsubscribes(t *testing.T) {
	disp := stream.New(4)
	sub := disp.Subscribe("c1")
	assert.Equal(t, 1, disp.SubscriberCount("c1"))
	sub.Close()
	assert.Equal(t, 0, disp.SubscriberCount("c1"))
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, stream.Event{Type: stream.EventTaskError}.IsTerminal())
	assert.True(t, stream.Event{Type: stream.EventStateUpdate, State: &model.AgentState{FinalStatus: model.FinalFailed}}.IsTerminal())
	assert.False(t, stream.Event{Type: stream.EventStateUpdate, State: &model.AgentState{FinalStatus: model.FinalPending}}.IsTerminal())
	assert.False(t, stream.Event{Type: stream.EventPing}.IsTerminal())
}
