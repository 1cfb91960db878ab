package event

import (
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"

	"github.com/luxfi/signer/pkg/encoding"
	"github.com/luxfi/signer/pkg/kvstore"
	"github.com/luxfi/signer/pkg/messaging"
	"github.com/luxfi/signer/pkg/types"
)

// Sink archives outcome batches and publishes them to operators. Either
// the store or the bus may be nil.
type Sink struct {
	signerID uint32
	store    kvstore.KVStore
	bus      messaging.PubSub
	logger   zerolog.Logger
	now      func() time.Time
}

func NewSink(signerID uint32, store kvstore.KVStore, bus messaging.PubSub, log zerolog.Logger) *Sink {
	return &Sink{
		signerID: signerID,
		store:    store,
		bus:      bus,
		logger:   log.With().Str("component", "result_sink").Logger(),
		now:      time.Now,
	}
}

// ArchivePrefix is the key prefix of every outcome archived by signerID.
func ArchivePrefix(signerID uint32) string {
	return fmt.Sprintf("outcome/%d/", signerID)
}

// Handle records every outcome in the batch. A failure on one outcome
// does not stop the others; all failures are returned together.
func (s *Sink) Handle(outcomes []types.Outcome) ([]RoundResultEvent, error) {
	var (
		result *multierror.Error
		events = make([]RoundResultEvent, 0, len(outcomes))
	)
	for _, outcome := range outcomes {
		ev, err := FromOutcome(s.signerID, outcome)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		ev.ID = uuid.NewString()
		ev.CreatedAt = s.now().UTC().Format(time.RFC3339Nano)

		data, err := encoding.StructToJsonBytes(ev)
		if err != nil {
			result = multierror.Append(result, err)
			continue
		}
		if s.store != nil {
			if err := s.store.Put(ArchivePrefix(s.signerID)+ev.ID, data); err != nil {
				result = multierror.Append(result, fmt.Errorf("archive %s: %w", ev.ID, err))
			}
		}
		if s.bus != nil {
			if err := s.bus.Publish(RoundResultTopic(s.signerID), data); err != nil {
				result = multierror.Append(result, fmt.Errorf("publish %s: %w", ev.ID, err))
			}
		}
		s.logger.Info().
			Str("id", ev.ID).
			Str("outcome", ev.OutcomeKind).
			Str("result", string(ev.ResultType)).
			Msg("Round result recorded")
		events = append(events, ev)
	}
	return events, result.ErrorOrNil()
}

// History returns the archived results of this signer, oldest first.
func (s *Sink) History() ([]RoundResultEvent, error) {
	if s.store == nil {
		return nil, nil
	}
	keys, err := s.store.KeysWithPrefix(ArchivePrefix(s.signerID))
	if err != nil {
		return nil, err
	}
	events := make([]RoundResultEvent, 0, len(keys))
	for _, key := range keys {
		data, err := s.store.Get(key)
		if err != nil {
			return nil, err
		}
		var ev RoundResultEvent
		if err := encoding.JsonBytesToStruct(data, &ev); err != nil {
			return nil, fmt.Errorf("event: decode %s: %w", key, err)
		}
		events = append(events, ev)
	}
	slices.SortStableFunc(events, func(a, b RoundResultEvent) int {
		return createdAt(a).Compare(createdAt(b))
	})
	return events, nil
}

// createdAt is the zero time for an unparsable timestamp.
func createdAt(ev RoundResultEvent) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, ev.CreatedAt)
	return t
}
