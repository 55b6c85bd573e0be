package wallet

import (
	"context"
	"encoding/binary"
	"io"

	"github.com/spacesprotocol/spaced-go/blockfetcher"
	"github.com/spacesprotocol/spaced-go/storage"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// CheckpointList is the serialized form of a wallet's rewind points, newest first. It satisfies
// storage.Savable so any configured backend can persist it.
type CheckpointList struct {
	WalletName  string
	Checkpoints []blockfetcher.BlockId
}

func (l *CheckpointList) Path() string {
	return "wallets/" + l.WalletName + "/checkpoints"
}

func (l *CheckpointList) Serialize(w io.Writer) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(l.Checkpoints))); err != nil {
		return errors.Wrap(err, "count")
	}

	for _, checkpoint := range l.Checkpoints {
		if err := binary.Write(w, binary.LittleEndian, checkpoint.Height); err != nil {
			return errors.Wrap(err, "height")
		}
		if _, err := w.Write(checkpoint.Hash[:]); err != nil {
			return errors.Wrap(err, "hash")
		}
	}

	return nil
}

func (l *CheckpointList) Deserialize(r io.Reader) error {
	var count uint32
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return errors.Wrap(err, "count")
	}

	l.Checkpoints = make([]blockfetcher.BlockId, count)
	for i := range l.Checkpoints {
		if err := binary.Read(r, binary.LittleEndian, &l.Checkpoints[i].Height); err != nil {
			return errors.Wrap(err, "height")
		}
		var hash chainhash.Hash
		if _, err := io.ReadFull(r, hash[:]); err != nil {
			return errors.Wrap(err, "hash")
		}
		l.Checkpoints[i].Hash = hash
	}

	return nil
}

// SaveCheckpoints persists a wallet's checkpoint list to the configured backend.
func SaveCheckpoints(ctx context.Context, store storage.Writer, name string,
	checkpoints []blockfetcher.BlockId) error {
	return storage.Save(ctx, store, &CheckpointList{WalletName: name, Checkpoints: checkpoints})
}

// LoadCheckpoints reads a wallet's checkpoint list back. A missing key returns an empty list so
// a fresh wallet starts from its birth point.
func LoadCheckpoints(ctx context.Context, store storage.Reader,
	name string) ([]blockfetcher.BlockId, error) {

	list := &CheckpointList{WalletName: name}
	if err := storage.Load(ctx, store, list.Path(), list); err != nil {
		if errors.Cause(err) == storage.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}

	return list.Checkpoints, nil
}
