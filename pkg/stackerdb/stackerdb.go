package stackerdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/common/backoff"
	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/messaging"
)

var ErrSendFailed = errors.New("stackerdb: send failed")

const defaultFlushTimeout = 2 * time.Second

type Config struct {
	MinersContract  string
	SignersContract string
	SendPolicy      backoff.Policy
	FlushTimeout    time.Duration
}

// StackerDB writes this signer's slot in the signers contract.
type StackerDB struct {
	bus    messaging.PubSub
	cfg    Config
	logger zerolog.Logger

	mu           sync.Mutex
	slotVersions map[uint32]uint32
}

func New(bus messaging.PubSub, cfg Config, log zerolog.Logger) *StackerDB {
	cfg.SendPolicy = cfg.SendPolicy.OrDefault(backoff.DefaultSendPolicy)
	if cfg.FlushTimeout == 0 {
		cfg.FlushTimeout = defaultFlushTimeout
	}
	return &StackerDB{
		bus:          bus,
		cfg:          cfg,
		logger:       log.With().Str("component", "stackerdb").Logger(),
		slotVersions: make(map[uint32]uint32),
	}
}

func (db *StackerDB) MinersContractID() string  { return db.cfg.MinersContract }
func (db *StackerDB) SignersContractID() string { return db.cfg.SignersContract }

// SendMessageWithRetry writes msg into signerID's slot, retrying the
// publish with exponential backoff. The slot version is bumped once per
// message, not per attempt.
func (db *StackerDB) SendMessageWithRetry(ctx context.Context, signerID uint32, msg message.Message) (*Ack, error) {
	data, err := message.Encode(msg)
	if err != nil {
		return nil, err
	}

	db.mu.Lock()
	db.slotVersions[signerID]++
	version := db.slotVersions[signerID]
	db.mu.Unlock()

	payload, err := EncodeEvent(&ChunksEvent{
		ContractID:    db.cfg.SignersContract,
		ModifiedSlots: []Chunk{{SlotID: signerID, SlotVersion: version, Data: data}},
	})
	if err != nil {
		return nil, err
	}

	subject := Subject(db.cfg.SignersContract)
	err = backoff.Do(ctx, db.cfg.SendPolicy, db.logger, "stackerdb.send", func() error {
		if err := db.bus.Publish(subject, payload); err != nil {
			return err
		}
		return db.bus.Flush(db.cfg.FlushTimeout)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: slot %d version %d: %v", ErrSendFailed, signerID, version, err)
	}

	db.logger.Debug().
		Str("type", msg.MessageType()).
		Uint32("slot", signerID).
		Uint32("version", version).
		Int("size", len(data)).
		Msg("Chunk written")
	return &Ack{Accepted: true, SlotID: signerID, SlotVersion: version}, nil
}
