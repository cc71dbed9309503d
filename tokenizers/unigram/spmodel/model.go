// Package spmodel decodes the subset of the SentencePiece trainer's
// ModelProto protobuf message the unigram tokenizer needs: pieces,
// trainerSpec.{unkId, bosId, eosId}, normalizerSpec.{addDummyPrefix,
// removeExtraWhitespaces}. It is a hand-written protowire walker rather
// than protoc-generated code, since the full .proto schema isn't part of
// this module; field numbers are those of SentencePiece's published
// model.proto.
package spmodel

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/pkg/errors"
)

// SentencePiece field numbers within ModelProto's repeated "pieces".
const (
	fieldPieceText  = 1
	fieldPieceScore = 2
	fieldPieceType  = 3
)

// TrainerSpec field numbers: unk/bos/eos, which the unigram core reads, and
// pad, which is decoded but not read by it.
const (
	fieldTrainerUnkID = 40
	fieldTrainerBosID = 41
	fieldTrainerEosID = 42
	fieldTrainerPadID = 43
)

// NormalizerSpec field numbers.
const (
	fieldNormAddDummyPrefix         = 3
	fieldNormRemoveExtraWhitespaces = 4
)

// ModelProto field numbers.
const (
	fieldModelPieces         = 1
	fieldModelTrainerSpec    = 2
	fieldModelNormalizerSpec = 3
)

// SentencePiece is one decoded vocabulary entry.
type SentencePiece struct {
	Piece string
	Score float32
	Type  int32
}

// TrainerSpec holds the decoded subset of trainer options.
type TrainerSpec struct {
	UnkID *int32
	BosID *int32
	EosID *int32
	PadID *int32
}

// NormalizerSpec holds the subset of normalizer options the core reads.
type NormalizerSpec struct {
	AddDummyPrefix          *bool
	RemoveExtraWhitespaces *bool
}

// ModelProto is the decoded subset of a SentencePiece model file.
type ModelProto struct {
	Pieces         []SentencePiece
	TrainerSpec    *TrainerSpec
	NormalizerSpec *NormalizerSpec
}

// Decode parses a serialized SentencePiece ModelProto.
func Decode(data []byte) (*ModelProto, error) {
	m := &ModelProto{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case fieldModelPieces:
			v, _ := protowire.ConsumeBytes(field)
			piece, err := decodePiece(v)
			if err != nil {
				return errors.Wrap(err, "decoding piece")
			}
			m.Pieces = append(m.Pieces, piece)
		case fieldModelTrainerSpec:
			v, _ := protowire.ConsumeBytes(field)
			ts, err := decodeTrainerSpec(v)
			if err != nil {
				return errors.Wrap(err, "decoding trainer_spec")
			}
			m.TrainerSpec = ts
		case fieldModelNormalizerSpec:
			v, _ := protowire.ConsumeBytes(field)
			ns, err := decodeNormalizerSpec(v)
			if err != nil {
				return errors.Wrap(err, "decoding normalizer_spec")
			}
			m.NormalizerSpec = ns
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return m, nil
}

func decodePiece(data []byte) (SentencePiece, error) {
	var p SentencePiece
	err := eachField(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case fieldPieceText:
			v, _ := protowire.ConsumeBytes(field)
			p.Piece = string(v)
		case fieldPieceScore:
			v, _ := protowire.ConsumeFixed32(field)
			p.Score = math.Float32frombits(v)
		case fieldPieceType:
			v, _ := protowire.ConsumeVarint(field)
			p.Type = int32(v)
		}
		return nil
	})
	return p, err
}

func decodeTrainerSpec(data []byte) (*TrainerSpec, error) {
	ts := &TrainerSpec{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case fieldTrainerUnkID:
			v, _ := protowire.ConsumeVarint(field)
			x := int32(v)
			ts.UnkID = &x
		case fieldTrainerBosID:
			v, _ := protowire.ConsumeVarint(field)
			x := int32(v)
			ts.BosID = &x
		case fieldTrainerEosID:
			v, _ := protowire.ConsumeVarint(field)
			x := int32(v)
			ts.EosID = &x
		case fieldTrainerPadID:
			v, _ := protowire.ConsumeVarint(field)
			x := int32(v)
			ts.PadID = &x
		}
		return nil
	})
	return ts, err
}

func decodeNormalizerSpec(data []byte) (*NormalizerSpec, error) {
	ns := &NormalizerSpec{}
	err := eachField(data, func(num protowire.Number, typ protowire.Type, field []byte) error {
		switch num {
		case fieldNormAddDummyPrefix:
			v, _ := protowire.ConsumeVarint(field)
			x := v != 0
			ns.AddDummyPrefix = &x
		case fieldNormRemoveExtraWhitespaces:
			v, _ := protowire.ConsumeVarint(field)
			x := v != 0
			ns.RemoveExtraWhitespaces = &x
		}
		return nil
	})
	return ns, err
}

// eachField walks the top-level fields of a submessage buffer, invoking fn
// with the raw bytes following the tag (so fn can Consume the scalar/bytes
// value appropriate to the field it recognizes); unrecognized fields are
// skipped via protowire's generic field-value consumer.
func eachField(data []byte, fn func(num protowire.Number, typ protowire.Type, field []byte) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.New("malformed protobuf: bad tag")
		}
		data = data[n:]
		if err := fn(num, typ, data); err != nil {
			return err
		}
		n = protowire.ConsumeFieldValue(num, typ, data)
		if n < 0 {
			return errors.New("malformed protobuf: bad field value")
		}
		data = data[n:]
	}
	return nil
}
