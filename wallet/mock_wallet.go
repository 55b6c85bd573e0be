package wallet

import (
	"bytes"
	"context"
	"sync"

	"github.com/spacesprotocol/spaced-go/blockfetcher"
	"github.com/spacesprotocol/spaced-go/spaces"
	"github.com/spacesprotocol/spaced-go/storage"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MockWallet is an in-memory Wallet for tests of the sync actor and batch builder. State is
// poked in directly through the setters; every mutation the core performs is recorded so tests
// can assert on it.
type MockWallet struct {
	name   string
	params *chaincfg.Params

	tip         blockfetcher.BlockId
	checkpoints []blockfetcher.BlockId // newest first

	outputs      []LocalOutput
	balances     map[KeychainKind]Balance
	ownedScripts [][]byte
	auctionOuts  []DoubleOutput

	coinAddresses  []btcutil.Address
	spaceAddresses []*spaces.SpaceAddress
	nextCoin       int
	nextSpace      int

	appliedBlocks []blockfetcher.BlockId
	restores      []blockfetcher.BlockId
	insertedTxs   []*wire.MsgTx
	commitCount   int
	commitErr     error

	feeBumpTx *wire.MsgTx

	// store, when set, receives the checkpoint list on every Commit.
	store storage.Writer

	lock sync.Mutex
}

func NewMockWallet(params *chaincfg.Params) *MockWallet {
	return &MockWallet{
		name:     uuid.New().String(),
		params:   params,
		balances: make(map[KeychainKind]Balance),
	}
}

func (m *MockWallet) SetName(name string)                { m.name = name }
func (m *MockWallet) SetStore(store storage.Writer)      { m.store = store }
func (m *MockWallet) SetCommitError(err error)           { m.commitErr = err }
func (m *MockWallet) SetFeeBumpTx(tx *wire.MsgTx)        { m.feeBumpTx = tx }
func (m *MockWallet) SetAuctionOutputs(d []DoubleOutput) { m.auctionOuts = d }

func (m *MockWallet) SetTip(tip blockfetcher.BlockId) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tip = tip
}

// AddCheckpoint records a rewind point; checkpoints are kept newest first.
func (m *MockWallet) AddCheckpoint(checkpoint blockfetcher.BlockId) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.checkpoints = append([]blockfetcher.BlockId{checkpoint}, m.checkpoints...)
}

func (m *MockWallet) AddOutput(output LocalOutput) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.outputs = append(m.outputs, output)
}

func (m *MockWallet) SetBalance(kind KeychainKind, balance Balance) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.balances[kind] = balance
}

func (m *MockWallet) AddOwnedScript(script []byte) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.ownedScripts = append(m.ownedScripts, script)
}

func (m *MockWallet) QueueCoinAddress(address btcutil.Address) {
	m.coinAddresses = append(m.coinAddresses, address)
}

func (m *MockWallet) QueueSpaceAddress(address *spaces.SpaceAddress) {
	m.spaceAddresses = append(m.spaceAddresses, address)
}

func (m *MockWallet) Name() string { return m.name }

func (m *MockWallet) Info() Info {
	m.lock.Lock()
	defer m.lock.Unlock()

	network := ""
	if m.params != nil {
		network = m.params.Name
	}
	return Info{
		Name:         m.name,
		Network:      network,
		Fingerprints: []string{"mock"},
		Tip:          m.tip,
	}
}

func (m *MockWallet) Tip() blockfetcher.BlockId {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.tip
}

func (m *MockWallet) Checkpoints() []blockfetcher.BlockId {
	m.lock.Lock()
	defer m.lock.Unlock()
	result := make([]blockfetcher.BlockId, len(m.checkpoints))
	copy(result, m.checkpoints)
	return result
}

func (m *MockWallet) ApplyBlock(ctx context.Context, id blockfetcher.BlockId,
	block *wire.MsgBlock, connectedTo blockfetcher.BlockId) error {

	m.lock.Lock()
	defer m.lock.Unlock()

	if connectedTo != m.tip {
		return errors.Errorf("connection point %s is not the local tip %s", connectedTo, m.tip)
	}

	m.appliedBlocks = append(m.appliedBlocks, id)
	m.tip = id
	return nil
}

func (m *MockWallet) RestoreTo(checkpoint blockfetcher.BlockId) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.tip = checkpoint
	m.restores = append(m.restores, checkpoint)
	return nil
}

func (m *MockWallet) Commit(ctx context.Context) error {
	m.lock.Lock()
	if m.commitErr != nil {
		defer m.lock.Unlock()
		return m.commitErr
	}
	m.commitCount++
	store := m.store
	name := m.name
	checkpoints := make([]blockfetcher.BlockId, len(m.checkpoints))
	copy(checkpoints, m.checkpoints)
	m.lock.Unlock()

	if store != nil {
		return SaveCheckpoints(ctx, store, name, checkpoints)
	}
	return nil
}

func (m *MockWallet) NextUnusedCoinAddress() (btcutil.Address, error) {
	if m.nextCoin >= len(m.coinAddresses) {
		return nil, errors.New("no coin addresses queued")
	}
	address := m.coinAddresses[m.nextCoin]
	m.nextCoin++
	return address, nil
}

func (m *MockWallet) NextUnusedSpaceAddress() (*spaces.SpaceAddress, error) {
	if m.nextSpace >= len(m.spaceAddresses) {
		return nil, errors.New("no space addresses queued")
	}
	address := m.spaceAddresses[m.nextSpace]
	m.nextSpace++
	return address, nil
}

func (m *MockWallet) ListOutputs(kind KeychainKind) []LocalOutput {
	m.lock.Lock()
	defer m.lock.Unlock()

	var result []LocalOutput
	for _, output := range m.outputs {
		if output.Keychain == kind {
			result = append(result, output)
		}
	}
	return result
}

func (m *MockWallet) BalanceOf(kind KeychainKind) Balance {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.balances[kind]
}

func (m *MockWallet) IsMine(pkScript []byte) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, script := range m.ownedScripts {
		if bytes.Equal(script, pkScript) {
			return true
		}
	}
	return false
}

func (m *MockWallet) ListAuctionOutputs() ([]DoubleOutput, error) {
	return m.auctionOuts, nil
}

func (m *MockWallet) MaxSatisfactionWeight(kind KeychainKind) int {
	return 107 // single schnorr signature witness
}

func (m *MockWallet) BuildFeeBump(ctx context.Context, txid chainhash.Hash,
	feeRate float64) (*wire.MsgTx, error) {
	if m.feeBumpTx == nil {
		return nil, errors.New("no fee bump configured")
	}
	return m.feeBumpTx, nil
}

func (m *MockWallet) InsertTx(ctx context.Context, tx *wire.MsgTx,
	confirmation Confirmation) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.insertedTxs = append(m.insertedTxs, tx)
	return nil
}

// AppliedBlocks returns the block ids applied so far, in order.
func (m *MockWallet) AppliedBlocks() []blockfetcher.BlockId {
	m.lock.Lock()
	defer m.lock.Unlock()
	result := make([]blockfetcher.BlockId, len(m.appliedBlocks))
	copy(result, m.appliedBlocks)
	return result
}

// InsertedTxs returns the transactions inserted after successful broadcasts.
func (m *MockWallet) InsertedTxs() []*wire.MsgTx {
	m.lock.Lock()
	defer m.lock.Unlock()
	result := make([]*wire.MsgTx, len(m.insertedTxs))
	copy(result, m.insertedTxs)
	return result
}

// Restores returns the checkpoints the wallet was rewound to, in order.
func (m *MockWallet) Restores() []blockfetcher.BlockId {
	m.lock.Lock()
	defer m.lock.Unlock()
	result := make([]blockfetcher.BlockId, len(m.restores))
	copy(result, m.restores)
	return result
}

// CommitCount returns how many times Commit succeeded.
func (m *MockWallet) CommitCount() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return m.commitCount
}
