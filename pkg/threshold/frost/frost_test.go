package frost

import (
	"testing"
	"time"

	"github.com/decred/dcrd/dcrec/secp256k1/v4"
	"github.com/decred/dcrd/dcrec/secp256k1/v4/schnorr"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/luxfi/signer/pkg/committee"
	"github.com/luxfi/signer/pkg/kvstore"
	"github.com/luxfi/signer/pkg/message"
	"github.com/luxfi/signer/pkg/runloop"
	"github.com/luxfi/signer/pkg/threshold"
	"github.com/luxfi/signer/pkg/types"
)

type testNode struct {
	cfg         threshold.EngineConfig
	coordinator runloop.Coordinator
	signer      runloop.Signer
}

type testCommittee struct {
	keys  committee.PublicKeySet
	nodes []*testNode
}

func newTestConfigs(t *testing.T, n int, stores []kvstore.KVStore) []threshold.EngineConfig {
	t.Helper()
	privs := make(map[uint32]*secp256k1.PrivateKey, n)
	pubs := make(map[uint32]*secp256k1.PublicKey, n)
	keyIDs := make(map[uint32][]uint32, n)
	for id := uint32(0); id < uint32(n); id++ {
		priv, err := secp256k1.GeneratePrivateKey()
		require.NoError(t, err)
		privs[id] = priv
		pubs[id] = priv.PubKey()
		keyIDs[id] = []uint32{id + 1}
	}
	keys, err := committee.NewPublicKeySet(pubs, keyIDs)
	require.NoError(t, err)

	cfgs := make([]threshold.EngineConfig, n)
	for id := uint32(0); id < uint32(n); id++ {
		cfgs[id] = threshold.EngineConfig{
			SignerID:   id,
			KeyIDs:     keyIDs[id],
			Threshold:  keys.ThresholdConfig(),
			Keys:       keys,
			PrivateKey: privs[id],
			Logger:     zerolog.Nop(),
		}
		if stores != nil {
			cfgs[id].Shares = stores[id]
		}
	}
	return cfgs
}

func buildCommittee(t *testing.T, cfgs []threshold.EngineConfig) *testCommittee {
	t.Helper()
	tc := &testCommittee{keys: cfgs[0].Keys}
	for _, cfg := range cfgs {
		coordinator, signer, err := Engine{}.New(cfg)
		require.NoError(t, err)
		tc.nodes = append(tc.nodes, &testNode{cfg: cfg, coordinator: coordinator, signer: signer})
	}
	return tc
}

// exchange relays first and everything it provokes to every node, as the
// signers contract would, until a coordinator reports an outcome.
func (tc *testCommittee) exchange(t *testing.T, first *message.Packet) types.Outcome {
	t.Helper()
	_, coordinatorKey := committee.SelectCoordinator(tc.keys)
	queue := []*message.Packet{first}
	deadline := time.Now().Add(30 * time.Second)
	for time.Now().Before(deadline) {
		batch := queue
		queue = nil
		for _, pkt := range batch {
			require.True(t, pkt.Verify(tc.keys, coordinatorKey), "packet %s from %d must verify", pkt.Kind, pkt.SignerID)
		}

		var outcomes []types.Outcome
		for _, n := range tc.nodes {
			out, err := n.signer.ProcessInboundMessages(batch)
			require.NoError(t, err)
			queue = append(queue, out...)

			cout, got, err := n.coordinator.ProcessInboundMessages(batch)
			require.NoError(t, err)
			queue = append(queue, cout...)
			outcomes = append(outcomes, got...)
		}
		if len(outcomes) > 0 {
			require.Len(t, outcomes, 1)
			return outcomes[0]
		}
		if len(queue) == 0 {
			time.Sleep(5 * time.Millisecond)
		}
	}
	t.Fatal("no outcome before deadline")
	return nil
}

func (tc *testCommittee) dkg(t *testing.T) types.DkgKey {
	t.Helper()
	start, err := tc.nodes[0].coordinator.StartDkgRound()
	require.NoError(t, err)
	outcome := tc.exchange(t, start)
	key, ok := outcome.(types.DkgKey)
	require.True(t, ok, "expected a DKG key, got %#v", outcome)
	return key
}

func verifySchnorr(t *testing.T, r, s, digest []byte, key *secp256k1.PublicKey) {
	t.Helper()
	sig, err := schnorr.ParseSignature(append(append([]byte{}, r...), s...))
	require.NoError(t, err)
	assert.True(t, sig.Verify(digest, key))
}

func TestEngine_RegisteredAsDefault(t *testing.T) {
	engine, err := threshold.Default().Get(Name)
	require.NoError(t, err)
	assert.Equal(t, Name, engine.Name())
}

func TestPartyThreshold(t *testing.T) {
	tests := []struct {
		name    string
		signers int
		want    int
	}{
		{"single signer", 1, 0},
		{"three signers", 3, 1},
		{"ten signers", 10, 6},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfgs := newTestConfigs(t, tt.signers, nil)
			assert.Equal(t, tt.want, partyThreshold(cfgs[0]))
		})
	}
}

func TestSealOpen(t *testing.T) {
	a, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	b, err := secp256k1.GeneratePrivateKey()
	require.NoError(t, err)
	session := []byte("session-1")

	ct, nonce, err := seal(a, b.PubKey(), session, []byte("share"))
	require.NoError(t, err)

	plain, err := open(b, a.PubKey(), session, ct, nonce)
	require.NoError(t, err)
	assert.Equal(t, []byte("share"), plain)

	_, err = open(b, a.PubKey(), []byte("session-2"), ct, nonce)
	assert.Error(t, err)
}

func TestSigningDigest_CommitsMerkleRoot(t *testing.T) {
	root := [32]byte{1}
	plain := signingDigest([]byte("block"), nil)
	tweaked := signingDigest([]byte("block"), &root)
	assert.Len(t, plain, 32)
	assert.Len(t, tweaked, 32)
	assert.NotEqual(t, plain, tweaked)
}

func TestCommittee_DkgThenSign(t *testing.T) {
	tc := buildCommittee(t, newTestConfigs(t, 3, nil))
	dkg := tc.dkg(t)
	require.NotNil(t, dkg.Key)

	msg := []byte("hello committee")
	start, err := tc.nodes[0].coordinator.StartSigningRound(msg, false, nil)
	require.NoError(t, err)
	sig, ok := tc.exchange(t, start).(types.Signature)
	require.True(t, ok, "expected a signature")
	verifySchnorr(t, sig.R, sig.Z, signingDigest(msg, nil), dkg.Key)

	root := [32]byte{7}
	start, err = tc.nodes[0].coordinator.StartSigningRound(msg, true, &root)
	require.NoError(t, err)
	proof, ok := tc.exchange(t, start).(types.TaprootProof)
	require.True(t, ok, "expected a taproot proof")
	verifySchnorr(t, proof.R, proof.S, signingDigest(msg, &root), dkg.Key)
}

func TestCommittee_SharesSurviveRestart(t *testing.T) {
	stores := make([]kvstore.KVStore, 3)
	for i := range stores {
		store, err := kvstore.NewBadgerKVStore(kvstore.BadgerConfig{NodeID: "frost", InMemory: true})
		require.NoError(t, err)
		t.Cleanup(func() { store.Close() }) //nolint:errcheck
		stores[i] = store
	}
	cfgs := newTestConfigs(t, 3, stores)
	dkg := buildCommittee(t, cfgs).dkg(t)

	restarted := buildCommittee(t, cfgs)
	restarted.nodes[0].coordinator.SetAggregatePublicKey(dkg.Key)

	msg := []byte("after restart")
	start, err := restarted.nodes[0].coordinator.StartSigningRound(msg, false, nil)
	require.NoError(t, err)
	sig, ok := restarted.exchange(t, start).(types.Signature)
	require.True(t, ok, "expected a signature")
	verifySchnorr(t, sig.R, sig.Z, signingDigest(msg, nil), dkg.Key)
}

func TestCoordinator_SigningNeedsAggregateKey(t *testing.T) {
	tc := buildCommittee(t, newTestConfigs(t, 3, nil))
	_, err := tc.nodes[0].coordinator.StartSigningRound([]byte("m"), false, nil)
	assert.ErrorIs(t, err, ErrNoAggregateKey)
}

func TestSigner_WithoutShareReportsFailure(t *testing.T) {
	tc := buildCommittee(t, newTestConfigs(t, 3, nil))
	coord := tc.nodes[0].coordinator
	coord.SetAggregatePublicKey(tc.nodes[0].cfg.PrivateKey.PubKey())

	start, err := coord.StartSigningRound([]byte("m"), false, nil)
	require.NoError(t, err)

	out, err := tc.nodes[1].signer.ProcessInboundMessages([]*message.Packet{start})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, message.KindSignatureShareResponse, out[0].Kind)

	_, outcomes, err := coord.ProcessInboundMessages(out)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	failed, ok := outcomes[0].(types.SignFailed)
	require.True(t, ok)
	assert.Contains(t, failed.Reason, "signer 1")
}

func TestCoordinator_RoundTimesOut(t *testing.T) {
	cfgs := newTestConfigs(t, 3, nil)
	cfgs[0].DkgPublicTimeout = time.Second
	cfgs[0].DkgEndTimeout = time.Second
	built, _, err := Engine{}.New(cfgs[0])
	require.NoError(t, err)
	c := built.(*coordinator)

	now := time.Unix(1_700_000_000, 0)
	c.now = func() time.Time { return now }
	_, err = c.StartDkgRound()
	require.NoError(t, err)

	_, outcomes, err := c.ProcessInboundMessages(nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)

	now = now.Add(3 * time.Second)
	_, outcomes, err = c.ProcessInboundMessages(nil)
	require.NoError(t, err)
	require.Len(t, outcomes, 1)
	assert.IsType(t, types.DkgFailed{}, outcomes[0])

	// The round is closed; later packets produce nothing.
	_, outcomes, err = c.ProcessInboundMessages(nil)
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}

func TestCoordinator_IgnoresOtherSessions(t *testing.T) {
	tc := buildCommittee(t, newTestConfigs(t, 3, nil))
	coord := tc.nodes[0].coordinator
	_, err := coord.StartDkgRound()
	require.NoError(t, err)

	n1 := tc.nodes[1].cfg
	stale, err := newPacket(message.KindDkgEnd, n1.SignerID, n1.PrivateKey, envelope{Session: []byte("stale"), Error: "boom"})
	require.NoError(t, err)

	_, outcomes, err := coord.ProcessInboundMessages([]*message.Packet{stale})
	require.NoError(t, err)
	assert.Empty(t, outcomes)
}
