// Copyright (C) 2019-2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// Package message defines what travels through the data store: threshold
// protocol packets exchanged by signers and block proposals from miners.
package message

import (
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// Wire tags. Every encoded message is one tag byte followed by a CBOR body.
const (
	TagPacket byte = 0x00
	TagBlock  byte = 0x01
)

var (
	ErrEmptyMessage = errors.New("message: empty payload")
	ErrUnknownTag   = errors.New("message: unknown tag")
	ErrInvalid      = errors.New("message: invalid")
)

// Message is either a *Packet or a *Block.
type Message interface {
	// MessageType names the variant for logs.
	MessageType() string
	validate() error
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic(err)
	}
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxArrayElements:  1 << 16,
		MaxMapPairs:       1 << 8,
	}.DecMode()
	if err != nil {
		panic(err)
	}
}

// Encode serializes msg into its tagged wire form.
func Encode(msg Message) ([]byte, error) {
	var tag byte
	switch msg.(type) {
	case *Packet:
		tag = TagPacket
	case *Block:
		tag = TagBlock
	default:
		return nil, fmt.Errorf("%w: unsupported type %T", ErrInvalid, msg)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	body, err := encMode.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s: %w", msg.MessageType(), err)
	}
	return append([]byte{tag}, body...), nil
}

// Decode parses a tagged wire message. Any malformed input, including
// trailing bytes after the body, yields an error.
func Decode(data []byte) (Message, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	var msg Message
	switch data[0] {
	case TagPacket:
		msg = new(Packet)
	case TagBlock:
		msg = new(Block)
	default:
		return nil, fmt.Errorf("%w: 0x%02x", ErrUnknownTag, data[0])
	}
	if err := decMode.Unmarshal(data[1:], msg); err != nil {
		return nil, fmt.Errorf("message: decode %s: %w", msg.MessageType(), err)
	}
	if err := msg.validate(); err != nil {
		return nil, err
	}
	return msg, nil
}
