// Package stackerdb is the client for the shared data store through which
// miners publish block proposals and signers exchange protocol packets.
// Each writer owns one slot per contract; every write bumps the slot
// version and is announced to subscribers as a ChunksEvent.
package stackerdb

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var ErrInvalidEvent = errors.New("stackerdb: invalid event")

// Chunk is the latest content of one slot.
type Chunk struct {
	SlotID      uint32 `cbor:"1,keyasint"`
	SlotVersion uint32 `cbor:"2,keyasint"`
	Data        []byte `cbor:"3,keyasint"`
}

// ChunksEvent reports slots modified in a contract.
type ChunksEvent struct {
	ContractID    string  `cbor:"1,keyasint"`
	ModifiedSlots []Chunk `cbor:"2,keyasint"`
}

// Ack is the data store's answer to a write.
type Ack struct {
	Accepted    bool
	SlotID      uint32
	SlotVersion uint32
	Reason      string
}

// EncodeEvent serializes an event for the bus.
func EncodeEvent(ev *ChunksEvent) ([]byte, error) {
	if ev.ContractID == "" {
		return nil, fmt.Errorf("%w: empty contract id", ErrInvalidEvent)
	}
	return cbor.Marshal(ev)
}

// DecodeEvent parses an event received from the bus.
func DecodeEvent(data []byte) (*ChunksEvent, error) {
	var ev ChunksEvent
	if err := cbor.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	if ev.ContractID == "" {
		return nil, fmt.Errorf("%w: empty contract id", ErrInvalidEvent)
	}
	return &ev, nil
}

// Subject is the bus topic carrying events for a contract.
func Subject(contractID string) string {
	return "stackerdb." + contractID
}
