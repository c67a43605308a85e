// Package lifecycle holds the state machines for jobs, applications,
// services and bookings, and the rule deciding who may drive each edge.
package lifecycle

import "github.com/sudo-init-do/localfix/internal/apperr"

// Entity names a state machine.
type Entity string

const (
	EntityJob         Entity = "job"
	EntityApplication Entity = "application"
	EntityService     Entity = "service"
	EntityBooking     Entity = "booking"
)

// Party is the relationship an actor has to the row being transitioned.
type Party uint8

const (
	Poster Party = 1 << iota
	AcceptedProvider
	Applicant
	Provider
	Client
	Admin
)

// Parties is a set of Party values.
type Parties uint8

// Of builds a set from the given parties.
func Of(ps ...Party) Parties {
	var s Parties
	for _, p := range ps {
		s |= Parties(p)
	}
	return s
}

func (s Parties) Has(p Party) bool { return s&Parties(p) != 0 }

type edge struct {
	from, to string
	drivers  Parties
}

type machine struct {
	edges    []edge
	terminal map[string]bool
}

var machines = map[Entity]machine{
	EntityJob: {
		edges: []edge{
			{"open", "in-progress", Of(Poster)},
			{"open", "closed", Of(Poster)},
			{"in-progress", "completed", Of(Poster, AcceptedProvider)},
		},
		terminal: map[string]bool{"closed": true, "completed": true},
	},
	EntityApplication: {
		edges: []edge{
			{"pending", "accepted", Of(Poster)},
			{"pending", "rejected", Of(Poster)},
			{"pending", "withdrawn", Of(Applicant)},
			{"accepted", "withdrawn", Of(Applicant)},
		},
		terminal: map[string]bool{"rejected": true, "withdrawn": true},
	},
	EntityService: {
		edges: []edge{
			{"pending", "approved", Of(Admin)},
			{"approved", "open", Of(Provider)},
			{"open", "closed", Of(Provider)},
			{"closed", "open", Of(Provider)},
		},
	},
	EntityBooking: {
		edges: []edge{
			{"pending", "approved", Of(Provider)},
			{"pending", "rejected", Of(Provider)},
			{"approved", "completed", Of(Provider)},
			{"pending", "cancelled", Of(Client)},
			{"approved", "cancelled", Of(Client)},
		},
		terminal: map[string]bool{"completed": true, "cancelled": true, "rejected": true},
	},
}

// CanTransition reports whether an actor playing the given parties may move
// entity from one state to another. A missing edge is a state error; an edge
// the actor may not drive is a forbidden error.
func CanTransition(entity Entity, from, to string, actor Parties) error {
	m, ok := machines[entity]
	if !ok {
		return apperr.Validation("unknown entity %q", entity)
	}
	for _, e := range m.edges {
		if e.from != from || e.to != to {
			continue
		}
		if actor&e.drivers == 0 {
			return apperr.Forbidden("not permitted to move %s from %s to %s", entity, from, to)
		}
		return nil
	}
	if IsTerminal(entity, from) {
		return apperr.State("%s is %s and can no longer change", entity, from)
	}
	err := apperr.State("%s cannot move from %s to %s", entity, from, to)
	if allowed := Targets(entity, from, actor); len(allowed) > 0 {
		return err.WithDetails(map[string][]string{"allowed": allowed})
	}
	return err
}

// Targets lists the states reachable from `from` for the given actor.
func Targets(entity Entity, from string, actor Parties) []string {
	var out []string
	for _, e := range machines[entity].edges {
		if e.from == from && actor&e.drivers != 0 {
			out = append(out, e.to)
		}
	}
	return out
}

// IsTerminal reports whether state has no outgoing edges.
func IsTerminal(entity Entity, state string) bool {
	return machines[entity].terminal[state]
}
