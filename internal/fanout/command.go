package fanout

import "github.com/go-fanout-relay/internal/domain"

// command is the closed set of requests the router loop accepts. The loop
// switches over it exhaustively; nothing outside this file implements it.
type command interface {
	isCommand()
}

// subscribeCmd binds identity to out, replacing any previous binding.
type subscribeCmd struct {
	identity domain.Identity
	out      *Outbound
}

// publishCmd asks for msg to be handed to identity's outbound. The verdict
// comes back on reply, which has room for exactly one result.
type publishCmd struct {
	identity domain.Identity
	msg      domain.Message
	reply    chan publishResult
}

type publishResult struct {
	outcome domain.DeliveryOutcome
	err     error
}

func (subscribeCmd) isCommand() {}
func (publishCmd) isCommand() {}
