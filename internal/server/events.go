package server

import (
	"context"
	"sync"
	"time"
)

const (
	ReviewEventVersionCreated   = "version-created"
	ReviewEventVersionSubmitted = "version-submitted"
	ReviewEventVersionApproved  = "version-approved"
	ReviewEventVersionPublished = "version-published"
	ReviewEventVersionRejected  = "version-rejected"
	ReviewEventVersionArchived  = "version-archived"
	reviewEventHeartbeat        = "heartbeat"
)

// ReviewEvent notifies dashboard sessions that a version moved through the
// review workflow.
type ReviewEvent struct {
	ItemID    string    `json:"item_id"`
	VersionID string    `json:"version_id"`
	EventType string    `json:"event_type"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// topicAll receives every event regardless of item.
const topicAll = ""

// ReviewDispatcher fans review events out to subscribed sessions. Subscribers
// pick one item or the firehose; slow subscribers drop events rather than
// blocking publishers.
type ReviewDispatcher struct {
	mu          sync.RWMutex
	subscribers map[string]map[int64]*reviewSubscriber
	nextID      int64
	bufferSize  int
}

type reviewSubscriber struct {
	id     int64
	stream chan ReviewEvent
}

func NewReviewDispatcher() *ReviewDispatcher {
	return &ReviewDispatcher{
		subscribers: make(map[string]map[int64]*reviewSubscriber),
		bufferSize:  16,
	}
}

// Subscribe registers interest in one item's events, or every event when
// itemID is empty. The subscription is removed when ctx is done or the
// returned cleanup runs.
func (d *ReviewDispatcher) Subscribe(ctx context.Context, itemID string) (<-chan ReviewEvent, func()) {
	subscriber := &reviewSubscriber{
		id:     d.nextSequence(),
		stream: make(chan ReviewEvent, d.bufferSize),
	}
	d.registerSubscriber(itemID, subscriber)
	cleanup := func() {
		d.unregisterSubscriber(itemID, subscriber.id)
	}
	go func() {
		<-ctx.Done()
		cleanup()
	}()
	return subscriber.stream, cleanup
}

// Publish delivers the event to item subscribers and firehose subscribers.
func (d *ReviewDispatcher) Publish(event ReviewEvent) {
	if event.ItemID == "" || event.EventType == "" {
		return
	}
	d.mu.RLock()
	copies := make([]*reviewSubscriber, 0)
	for _, subscriber := range d.subscribers[event.ItemID] {
		copies = append(copies, subscriber)
	}
	for _, subscriber := range d.subscribers[topicAll] {
		copies = append(copies, subscriber)
	}
	d.mu.RUnlock()
	for _, subscriber := range copies {
		select {
		case subscriber.stream <- event:
		default:
		}
	}
}

func (d *ReviewDispatcher) nextSequence() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	return d.nextID
}

func (d *ReviewDispatcher) registerSubscriber(itemID string, subscriber *reviewSubscriber) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.subscribers[itemID]; !ok {
		d.subscribers[itemID] = make(map[int64]*reviewSubscriber)
	}
	d.subscribers[itemID][subscriber.id] = subscriber
}

func (d *ReviewDispatcher) unregisterSubscriber(itemID string, subscriberID int64) {
	d.mu.Lock()
	subscribers := d.subscribers[itemID]
	if subscribers != nil {
		delete(subscribers, subscriberID)
		if len(subscribers) == 0 {
			delete(d.subscribers, itemID)
		}
	}
	d.mu.Unlock()
}
