package model

import (
	"io"

	"github.com/pkg/errors"
	"github.com/ugorji/go/codec"
)

const snapshotVersion = 1

// snapshot is the serialized form of a Network.
type snapshot struct {
	Version          int
	Architecture     Architecture
	NormalizedInputs bool
	Params           map[string][]float64
	State            map[string][]float64
}

// Save writes the architecture, input scaling, parameters and normalization
// statistics of the network as msgpack. Optimizer state is not kept.
func (n *Network) Save(w io.Writer) error {
	snap := snapshot{
		Version:          snapshotVersion,
		Architecture:     n.arch,
		NormalizedInputs: n.normalized,
		Params:           make(map[string][]float64, len(n.params)),
		State:            make(map[string][]float64),
	}
	for _, p := range n.params {
		snap.Params[p.name] = p.value
	}
	for _, l := range n.layers {
		if s, ok := l.(stateful); ok {
			s.saveState(snap.State)
		}
	}
	var mh codec.MsgpackHandle
	mh.Canonical = true
	if err := codec.NewEncoder(w, &mh).Encode(&snap); err != nil {
		return errors.Wrap(err, "encode network")
	}
	return nil
}

// Load reads a network written by Save. opts configure the optimizer used if
// the loaded network is trained further; the input scaling always comes from
// the saved network.
func Load(r io.Reader, opts TrainOptions) (*Network, error) {
	var snap snapshot
	var mh codec.MsgpackHandle
	if err := codec.NewDecoder(r, &mh).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, "decode network")
	}
	if opts.LearningRate <= 0 {
		opts.LearningRate = DefaultLearningRate
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Errorf("unsupported network version %d", snap.Version)
	}
	opts.NormalizedInputs = snap.NormalizedInputs
	n, err := New(snap.Architecture, opts)
	if err != nil {
		return nil, err
	}
	for _, p := range n.params {
		value, ok := snap.Params[p.name]
		if !ok {
			return nil, errors.Errorf("missing parameter %s", p.name)
		}
		if len(value) != len(p.value) {
			return nil, errors.Errorf("parameter %s has %d values, want %d", p.name, len(value), len(p.value))
		}
		copy(p.value, value)
	}
	for _, l := range n.layers {
		if s, ok := l.(stateful); ok {
			if err := s.loadState(snap.State); err != nil {
				return nil, err
			}
		}
	}
	return n, nil
}
