// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package gamevm

import (
	"github.com/luxfi/pubsub"

	"github.com/luxfi/gamevm/events"
)

var (
	_ pubsub.Filterer = (*filterer)(nil)
	_ events.Emitter  = pubsubEmitter{}
)

// pubsubEmitter publishes each event to the pubsub server, filtered by
// participant address.
type pubsubEmitter struct {
	server *pubsub.Server
}

func (p pubsubEmitter) Emit(ev events.Event) {
	p.server.Publish(NewPubSubFilterer(ev))
}

type filterer struct {
	ev events.Event
}

func NewPubSubFilterer(ev events.Event) pubsub.Filterer {
	return &filterer{ev: ev}
}

// Filter returns for each subscriber filter whether one of the event's
// participants matches it, and the event to deliver.
func (f *filterer) Filter(filters []pubsub.Filter) ([]bool, interface{}) {
	resp := make([]bool, len(filters))
	for i, filter := range filters {
		for _, participant := range f.ev.Participants() {
			if filter.Check(participant[:]) {
				resp[i] = true
				break
			}
		}
	}
	return resp, f.ev
}
