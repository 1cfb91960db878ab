package event

import (
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/types"
)

var ErrInvalidCommand = errors.New("event: invalid command")

// CommandEvent is an operator request received on CommandTopic.
type CommandEvent struct {
	Type string `json:"type"`
	// Message is hex encoded.
	Message    string `json:"message,omitempty"`
	IsTaproot  bool   `json:"is_taproot,omitempty"`
	MerkleRoot string `json:"merkle_root,omitempty"`
}

// NewCommandEvent is the inverse of ToCommand.
func NewCommandEvent(cmd types.Command) CommandEvent {
	switch c := cmd.(type) {
	case types.SignCommand:
		ev := CommandEvent{Type: c.CommandName(), Message: hex.EncodeToString(c.Message), IsTaproot: c.IsTaproot}
		if c.MerkleRoot != nil {
			ev.MerkleRoot = hex.EncodeToString(c.MerkleRoot[:])
		}
		return ev
	default:
		return CommandEvent{Type: cmd.CommandName()}
	}
}

func (e CommandEvent) ToCommand() (types.Command, error) {
	switch e.Type {
	case types.DkgCommand{}.CommandName():
		return types.DkgCommand{}, nil
	case types.SignCommand{}.CommandName():
		msg, err := encoding.DecodeHex(e.Message)
		if err != nil {
			return nil, fmt.Errorf("%w: message: %v", ErrInvalidCommand, err)
		}
		if len(msg) == 0 {
			return nil, fmt.Errorf("%w: empty message", ErrInvalidCommand)
		}
		cmd := types.SignCommand{Message: msg, IsTaproot: e.IsTaproot}
		if e.MerkleRoot != "" {
			root, err := encoding.DecodeHex(e.MerkleRoot)
			if err != nil || len(root) != 32 {
				return nil, fmt.Errorf("%w: merkle root must be 32 hex bytes", ErrInvalidCommand)
			}
			cmd.MerkleRoot = (*[32]byte)(root)
		}
		return cmd, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidCommand, e.Type)
	}
}
