// Package types holds the values that cross the run loop boundary:
// commands queued by operators and outcomes produced by finished rounds.
package types

import "fmt"

// Command is a request to start a DKG or signing round. It is either a
// DkgCommand or a SignCommand.
type Command interface {
	CommandName() string
}

// DkgCommand starts a distributed key generation round.
type DkgCommand struct{}

func (DkgCommand) CommandName() string { return "dkg" }

// SignCommand starts a signing round over Message.
type SignCommand struct {
	Message    []byte
	IsTaproot  bool
	MerkleRoot *[32]byte
}

func (SignCommand) CommandName() string { return "sign" }

func (c SignCommand) String() string {
	return fmt.Sprintf("sign(len=%d, taproot=%t, merkle_root=%t)", len(c.Message), c.IsTaproot, c.MerkleRoot != nil)
}

// IsDkg reports whether cmd is a DKG command.
func IsDkg(cmd Command) bool {
	switch cmd.(type) {
	case DkgCommand, *DkgCommand:
		return true
	}
	return false
}
