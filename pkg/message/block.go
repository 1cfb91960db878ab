package message

import "fmt"

const HashLen = 32

// BlockHeader identifies a proposed block.
type BlockHeader struct {
	Version    uint8  `cbor:"1,keyasint"`
	Height     uint64 `cbor:"2,keyasint"`
	ParentHash []byte `cbor:"3,keyasint"`
	TxRoot     []byte `cbor:"4,keyasint"`
	Timestamp  uint64 `cbor:"5,keyasint"`
}

// Block is a miner's block proposal.
type Block struct {
	Header       BlockHeader `cbor:"1,keyasint"`
	Transactions [][]byte    `cbor:"2,keyasint,omitempty"`
}

func (b *Block) MessageType() string { return "block" }

func (b *Block) validate() error {
	if len(b.Header.ParentHash) != HashLen {
		return fmt.Errorf("%w: parent hash length %d", ErrInvalid, len(b.Header.ParentHash))
	}
	if len(b.Header.TxRoot) != HashLen {
		return fmt.Errorf("%w: tx root length %d", ErrInvalid, len(b.Header.TxRoot))
	}
	return nil
}

// Serialize returns the canonical encoding of the block. These are the
// bytes the committee signs when it approves the block.
func (b *Block) Serialize() []byte {
	// Fixed-shape struct; deterministic encoding cannot fail.
	data, _ := encMode.Marshal(b)
	return data
}
