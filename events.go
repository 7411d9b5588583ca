package rigidsim

import (
	"bytes"
	"maps"
	"slices"

	"github.com/akmonengine/rigidsim/actor"
	"github.com/akmonengine/rigidsim/sat"
)

const (
	COLLISION_ENTER EventType = iota
	COLLISION_STAY
	COLLISION_EXIT
	// LOW_CONFIDENCE is sent for contacts the detector could not classify
	LOW_CONFIDENCE
	// NO_CONTACT is sent when boxes overlap without any contact vertex
	NO_CONTACT
)

type pairKey struct {
	bodyA *actor.RigidBody
	bodyB *actor.RigidBody
}

// makePairKey creates a normalized pair key, ordered by body ID
func makePairKey(bodyA, bodyB *actor.RigidBody) pairKey {
	if bytes.Compare(bodyB.ID[:], bodyA.ID[:]) < 0 {
		bodyA, bodyB = bodyB, bodyA
	}

	return pairKey{bodyA: bodyA, bodyB: bodyB}
}

type EventType uint8

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// CollisionEnterEvent is sent on the first step a pair overlaps.
type CollisionEnterEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
	Info  sat.CollisionInfo
}

func (e CollisionEnterEvent) Type() EventType { return COLLISION_ENTER }

// CollisionStayEvent is sent on every following step the pair still overlaps.
type CollisionStayEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
	Info  sat.CollisionInfo
}

func (e CollisionStayEvent) Type() EventType { return COLLISION_STAY }

type CollisionExitEvent struct {
	BodyA *actor.RigidBody
	BodyB *actor.RigidBody
}

func (e CollisionExitEvent) Type() EventType { return COLLISION_EXIT }

type LowConfidenceEvent struct {
	Body *actor.RigidBody
	Info sat.CollisionInfo
}

func (e LowConfidenceEvent) Type() EventType { return LOW_CONFIDENCE }

type NoContactEvent struct {
	Body *actor.RigidBody
	Info sat.CollisionInfo
}

func (e NoContactEvent) Type() EventType { return NO_CONTACT }

// EventListener - callback for events
type EventListener func(event Event)

// Events manager
type Events struct {
	// Listeners by event type
	listeners map[EventType][]EventListener

	// Event buffer to send at flush
	buffer []Event

	// Pair tracking for Enter/Stay/Exit detection
	previousActivePairs map[pairKey]bool
	currentActivePairs  map[pairKey]sat.CollisionInfo
	// Pairs in record order, so events are dispatched deterministically
	previousOrder []pairKey
	currentOrder  []pairKey
}

func NewEvents() Events {
	return Events{
		listeners:           make(map[EventType][]EventListener),
		buffer:              make([]Event, 0, 64),
		previousActivePairs: make(map[pairKey]bool),
		currentActivePairs:  make(map[pairKey]sat.CollisionInfo),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.ensure()
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordCollision marks the pair of info as overlapping for this step
func (e *Events) recordCollision(info sat.CollisionInfo) {
	if !info.HasCollision || info.BodyA == nil || info.BodyB == nil {
		return
	}
	e.ensure()

	pair := makePairKey(info.BodyA, info.BodyB)
	if _, ok := e.currentActivePairs[pair]; !ok {
		e.currentOrder = append(e.currentOrder, pair)
	}
	e.currentActivePairs[pair] = info
	if info.LowConfidence() {
		e.buffer = append(e.buffer, LowConfidenceEvent{Body: info.BodyA, Info: info})
	}
}

func (e *Events) recordNoContact(body *actor.RigidBody, info sat.CollisionInfo) {
	e.buffer = append(e.buffer, NoContactEvent{Body: body, Info: info})
}

// forget drops the tracked pairs of a removed body, so no Exit is sent for it
func (e *Events) forget(body *actor.RigidBody) {
	involves := func(pair pairKey) bool {
		return pair.bodyA == body || pair.bodyB == body
	}

	e.previousOrder = slices.DeleteFunc(e.previousOrder, involves)
	e.currentOrder = slices.DeleteFunc(e.currentOrder, involves)
	maps.DeleteFunc(e.previousActivePairs, func(pair pairKey, _ bool) bool { return involves(pair) })
	maps.DeleteFunc(e.currentActivePairs, func(pair pairKey, _ sat.CollisionInfo) bool { return involves(pair) })
}

// processCollisionEvents compares current and previous pairs to detect Enter/Stay/Exit
func (e *Events) processCollisionEvents() {
	for _, pair := range e.currentOrder {
		info := e.currentActivePairs[pair]
		if e.previousActivePairs[pair] {
			e.buffer = append(e.buffer, CollisionStayEvent{BodyA: info.BodyA, BodyB: info.BodyB, Info: info})
		} else {
			e.buffer = append(e.buffer, CollisionEnterEvent{BodyA: info.BodyA, BodyB: info.BodyB, Info: info})
		}
	}

	for _, pair := range e.previousOrder {
		if _, ok := e.currentActivePairs[pair]; !ok {
			e.buffer = append(e.buffer, CollisionExitEvent{BodyA: pair.bodyA, BodyB: pair.bodyB})
		}
	}

	// Current pairs become the previous ones for the next step
	clear(e.previousActivePairs)
	for _, pair := range e.currentOrder {
		e.previousActivePairs[pair] = true
	}
	clear(e.currentActivePairs)
	e.previousOrder, e.currentOrder = e.currentOrder, e.previousOrder[:0]
}

// flush sends all buffered events and clears the buffer
func (e *Events) flush() {
	e.ensure()
	e.processCollisionEvents()

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}

// ensure makes the zero value usable
func (e *Events) ensure() {
	if e.listeners == nil {
		*e = NewEvents()
	}
}
