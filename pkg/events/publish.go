package events

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/rs/zerolog/log"
)

// PublisherManager distributes events to a set of publishers, one topic per
// subscription. Outgoing messages carry a process-wide sequence number in
// the order Publish handled them.
type PublisherManager struct {
	mu             sync.Mutex
	publishers     map[string][]message.Publisher
	sequenceNumber uint64
}

func NewPublisherManager() *PublisherManager {
	return &PublisherManager{
		publishers: make(map[string][]message.Publisher),
	}
}

func (s *PublisherManager) SubscribePublisher(topic string, pub message.Publisher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.publishers[topic] = append(s.publishers[topic], pub)
}

func (s *PublisherManager) Publish(ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	msg := message.NewMessage(watermill.NewUUID(), b)
	msg.Metadata.Set("sequence_number", fmt.Sprintf("%d", s.sequenceNumber))
	s.sequenceNumber++

	for topic, pubs := range s.publishers {
		for _, pub := range pubs {
			if err := pub.Publish(topic, msg); err != nil {
				log.Warn().Err(err).Str("topic", topic).Msg("failed to publish event")
			}
		}
	}
	return nil
}

// PublishBlind publishes and only logs failures. Event emission is never
// allowed to fail a turn.
func (s *PublisherManager) PublishBlind(ev Event) {
	if err := s.Publish(ev); err != nil {
		log.Warn().Err(err).Msg("failed to publish event")
	}
}
