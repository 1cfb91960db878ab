package e2e

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/common/backoff"
	"github.com/luxfi/signer/pkg/event"
	"github.com/luxfi/signer/pkg/kvstore"
	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/messaging"
	"github.com/luxfi/signer/pkg/runloop"
	"github.com/luxfi/signer/pkg/signer"
	"github.com/luxfi/signer/pkg/stackerdb"
	"github.com/luxfi/signer/pkg/threshold"
	"github.com/luxfi/signer/pkg/types"
)

const (
	committeeSize   = 3
	minersContract  = "miners"
	signersContract = "signers"
	roundTimeout    = 5 * time.Second
)

type fakeNode struct{}

func (fakeNode) GetAggregatePublicKey(context.Context) (*secp256k1.PublicKey, error) {
	return nil, nil
}

func (fakeNode) IsValidBlock(_ context.Context, block *message.Block) (bool, error) {
	return block.Header.Height > 0, nil
}

type testNode struct {
	id       uint32
	receiver *stackerdb.EventReceiver
	loop     *runloop.RunLoop
	signer   *signer.Signer
	sink     *event.Sink
	running  *signer.RunningSigner
}

type testCommittee struct {
	bus   *messaging.LocalPubSub
	nodes []*testNode
}

func newTestCommittee(t *testing.T) *testCommittee {
	t.Helper()
	log := zerolog.Nop()
	bus := messaging.NewLocalPubSub()

	privs := make(map[uint32]*secp256k1.PrivateKey, committeeSize)
	pubs := make(map[uint32]*secp256k1.PublicKey, committeeSize)
	keyIDs := make(map[uint32][]uint32, committeeSize)
	for id := uint32(0); id < committeeSize; id++ {
		priv, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		privs[id] = priv
		pubs[id] = priv.PubKey()
		keyIDs[id] = []uint32{id + 1}
	}
	keys, err := committee.NewPublicKeySet(pubs, keyIDs)
	require.NoError(t, err)

	engines := threshold.NewManager()
	engines.Register(echoEngine{})

	tc := &testCommittee{bus: bus}
	for id := uint32(0); id < committeeSize; id++ {
		coordinator, participant, err := engines.Build("echo", threshold.EngineConfig{
			SignerID:   id,
			KeyIDs:     keyIDs[id],
			Threshold:  keys.ThresholdConfig(),
			Keys:       keys,
			PrivateKey: privs[id],
		})
		require.NoError(t, err)

		store := stackerdb.New(bus, stackerdb.Config{
			MinersContract:  minersContract,
			SignersContract: signersContract,
			SendPolicy:      backoff.DefaultSendPolicy,
			FlushTimeout:    time.Second,
		}, log)
		receiver := stackerdb.NewEventReceiver(bus, []string{minersContract, signersContract}, 64, log)
		require.NoError(t, receiver.Start())

		archive, err := kvstore.NewBadgerKVStore(kvstore.BadgerConfig{NodeID: "e2e", InMemory: true})
		require.NoError(t, err)

		loop := runloop.New(runloop.Config{
			SignerID:     id,
			Keys:         keys,
			EventTimeout: 5 * time.Millisecond,
		}, fakeNode{}, store, coordinator, participant, log)

		n := &testNode{
			id:       id,
			receiver: receiver,
			loop:     loop,
			signer:   signer.New(loop, receiver.Events(), log),
			sink:     event.NewSink(id, archive, bus, log),
		}
		tc.nodes = append(tc.nodes, n)
		t.Cleanup(func() {
			if n.running != nil {
				n.running.Stop() //nolint:errcheck
			}
			receiver.Close() //nolint:errcheck
			archive.Close()  //nolint:errcheck
		})
	}
	return tc
}

// start spawns every driver after all receivers are listening.
func (tc *testCommittee) start(ctx context.Context) {
	for _, n := range tc.nodes {
		n.running = n.signer.Spawn(ctx)
	}
}

func (tc *testCommittee) coordinator() *testNode { return tc.nodes[0] }

func awaitOutcome(t *testing.T, n *testNode) types.Outcome {
	t.Helper()
	select {
	case outcomes := <-n.signer.Results():
		require.Len(t, outcomes, 1)
		_, err := n.sink.Handle(outcomes)
		require.NoError(t, err)
		return outcomes[0]
	case <-time.After(roundTimeout):
		t.Fatalf("signer %d: no round outcome within %s", n.id, roundTimeout)
		return nil
	}
}

func TestCommittee_DkgThenSign(t *testing.T) {
	tc := newTestCommittee(t)

	var published []event.RoundResultEvent
	_, err := tc.bus.Subscribe(event.RoundResultTopic(0), func(msg *nats.Msg) {
		var ev event.RoundResultEvent
		if assert.NoError(t, json.Unmarshal(msg.Data, &ev)) {
			published = append(published, ev)
		}
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tc.start(ctx)

	// No aggregate key is published, so the coordinator runs DKG first.
	coord := tc.coordinator()
	dkg, ok := awaitOutcome(t, coord).(types.DkgKey)
	require.True(t, ok, "first outcome should be the DKG key")
	require.NotNil(t, dkg.Key)

	require.NoError(t, coord.signer.Submit(ctx, types.SignCommand{Message: []byte("hello committee")}))
	sig, ok := awaitOutcome(t, coord).(types.Signature)
	require.True(t, ok, "expected a signature")
	assert.Len(t, sig.R, 32)
	assert.Len(t, sig.Z, 32)

	require.NoError(t, coord.signer.Submit(ctx, types.SignCommand{Message: []byte("taproot"), IsTaproot: true}))
	_, ok = awaitOutcome(t, coord).(types.TaprootProof)
	require.True(t, ok, "expected a taproot proof")

	history, err := coord.sink.History()
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.Len(t, published, 3)

	// Participants finish no rounds of their own.
	for _, n := range tc.nodes[1:] {
		assert.Empty(t, n.signer.Results())
		assert.Equal(t, runloop.StateIdle, n.loop.State())
	}
}

func TestCommittee_SignsValidBlockProposals(t *testing.T) {
	tc := newTestCommittee(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	tc.start(ctx)

	coord := tc.coordinator()
	_, ok := awaitOutcome(t, coord).(types.DkgKey)
	require.True(t, ok)

	miners := stackerdb.New(tc.bus, stackerdb.Config{
		MinersContract:  minersContract,
		SignersContract: minersContract,
		FlushTimeout:    time.Second,
	}, zerolog.Nop())

	// Height zero is rejected by the node, so only the second block is signed.
	for _, height := range []uint64{0, 7} {
		block := &message.Block{Header: message.BlockHeader{
			Version:    1,
			Height:     height,
			ParentHash: make([]byte, message.HashLen),
			TxRoot:     make([]byte, message.HashLen),
		}}
		_, err := miners.SendMessageWithRetry(ctx, 99, block)
		require.NoError(t, err)
	}

	sig, ok := awaitOutcome(t, coord).(types.Signature)
	require.True(t, ok)
	assert.NotEmpty(t, sig.Z)

	select {
	case extra := <-coord.signer.Results():
		t.Fatalf("unexpected outcome %v", extra)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Zero(t, coord.loop.PendingCommands())
}
