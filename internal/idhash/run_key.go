// Package idhash computes deterministic identifiers. Run keys are pure
// functions of their inputs, so equal inputs always map to the same key:
// the property the result cache depends on.
package idhash

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/mr-tron/base58"

	"backtest-lab/internal/domain"
)

// ComputeRunKey computes a deterministic run identifier from everything that
// influences a simulation's output: symbol, sizing policy id, date range, all
// numeric configuration parameters, and the content hash of the input data.
// Formula: base58(SHA256(symbol|sizing_id|start|end|params...|data_hash)).
func ComputeRunKey(symbol, sizingID string, cfg domain.SimulationConfig, dataHash string) string {
	start, end := "", ""
	if cfg.StartDate != nil {
		start = cfg.StartDate.UTC().Format(time.RFC3339)
	}
	if cfg.EndDate != nil {
		end = cfg.EndDate.UTC().Format(time.RFC3339)
	}

	data := fmt.Sprintf("%s|%s|%s|%s|%.12g|%.12g|%.12g|%.12g|%.12g|%s|%s",
		symbol,
		sizingID,
		start,
		end,
		cfg.InitialCapital,
		cfg.CommissionRate,
		cfg.SlippageRate,
		cfg.MaxPositionRatio,
		cfg.RiskFreeRate,
		stagesFingerprint(cfg.Sizing),
		dataHash,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}

// ComputeDataHash computes a content hash over a bar series and its aligned
// signal stream. Only fields that affect simulation output participate.
// The encoding is injective: each stream is length-prefixed and every
// optional field carries a presence byte, so streams that differ in which
// optional field is set can never hash alike.
func ComputeDataHash(bars []*domain.Bar, signals []*domain.SignalRow) string {
	h := sha256.New()
	buf := make([]byte, 8)

	writeFloat := func(f float64) {
		binary.BigEndian.PutUint64(buf, math.Float64bits(f))
		h.Write(buf)
	}
	writeInt := func(i int64) {
		binary.BigEndian.PutUint64(buf, uint64(i))
		h.Write(buf)
	}
	writeByte := func(b byte) {
		h.Write([]byte{b})
	}
	writeOptFloat := func(f *float64) {
		if f == nil {
			writeByte(0)
			return
		}
		writeByte(1)
		writeFloat(*f)
	}

	writeInt(int64(len(bars)))
	for _, b := range bars {
		writeInt(b.Date.UnixMilli())
		writeFloat(b.Open)
		writeFloat(b.High)
		writeFloat(b.Low)
		writeFloat(b.Close)
		writeFloat(b.Volume)
	}
	writeInt(int64(len(signals)))
	for _, s := range signals {
		if s == nil {
			writeByte(0)
			continue
		}
		writeByte(1)
		writeInt(s.Date.UnixMilli())
		writeInt(int64(s.Signal))
		writeOptFloat(s.SuggestedPositionSize)
		writeOptFloat(s.Strength)
	}

	return base58.Encode(h.Sum(nil))
}

// stagesFingerprint folds staged-sizing parameters into the key material.
func stagesFingerprint(cfg domain.SizingConfig) string {
	out := cfg.Policy
	if cfg.Fraction != nil {
		out += fmt.Sprintf("|f%.12g", *cfg.Fraction)
	}
	if cfg.MaxFraction != nil {
		out += fmt.Sprintf("|m%.12g", *cfg.MaxFraction)
	}
	for _, s := range cfg.Stages {
		out += fmt.Sprintf("|s%.12g", s)
	}
	return out
}
