package bus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishDeliversToTopicOnly(t *testing.T) {
	b := New(nil)
	var got []string
	b.Subscribe(TopicKeywords, func(ev Event) { got = append(got, "k:"+ev.Topic) })
	b.Subscribe(TopicConnections, func(ev Event) { got = append(got, "c:"+ev.Topic) })

	b.Publish(Event{Topic: TopicKeywords})
	assert.Equal(t, []string{"k:keywords"}, got)
}

func TestUnsubscribe(t *testing.T) {
	b := New(nil)
	calls := 0
	unsub := b.Subscribe(TopicKeywords, func(Event) { calls++ })
	b.Publish(Event{Topic: TopicKeywords})
	unsub()
	unsub()
	b.Publish(Event{Topic: TopicKeywords})

	assert.Equal(t, 1, calls)
	assert.Zero(t, b.Subscribers(TopicKeywords))
}

func TestPanickingHandlerDoesNotBlockOthers(t *testing.T) {
	b := New(nil)
	reached := false
	b.Subscribe(TopicUsage, func(Event) { panic("boom") })
	b.Subscribe(TopicUsage, func(Event) { reached = true })

	assert.NotPanics(t, func() { b.Publish(Event{Topic: TopicUsage}) })
	assert.True(t, reached)
}
