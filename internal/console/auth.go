package console

import "github.com/lewisedginton/chat_console/internal/transport"

// Authorizer decides whether a message comes from the operator.
type Authorizer interface {
	IsOperator(msg transport.Message) bool
}

// Operators authorizes a fixed set of author IDs per platform.
type Operators map[string]map[string]struct{}

// NewOperators builds an Operators set from platform to author IDs.
func NewOperators(ids map[string][]string) Operators {
	ops := make(Operators, len(ids))
	for platform, authors := range ids {
		set := make(map[string]struct{}, len(authors))
		for _, id := range authors {
			if id != "" {
				set[id] = struct{}{}
			}
		}
		ops[platform] = set
	}
	return ops
}

func (o Operators) IsOperator(msg transport.Message) bool {
	_, ok := o[msg.Platform][msg.AuthorID]
	return ok
}
