package spmodel

import (
	"math"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"
)

func appendPiece(buf []byte, text string, score float32, typ int32) []byte {
	var piece []byte
	piece = protowire.AppendTag(piece, fieldPieceText, protowire.BytesType)
	piece = protowire.AppendString(piece, text)
	piece = protowire.AppendTag(piece, fieldPieceScore, protowire.Fixed32Type)
	piece = protowire.AppendFixed32(piece, math.Float32bits(score))
	piece = protowire.AppendTag(piece, fieldPieceType, protowire.VarintType)
	piece = protowire.AppendVarint(piece, uint64(typ))

	buf = protowire.AppendTag(buf, fieldModelPieces, protowire.BytesType)
	buf = protowire.AppendBytes(buf, piece)
	return buf
}

func TestDecodeModelProto(t *testing.T) {
	var data []byte
	data = appendPiece(data, "<unk>", 0, 2)
	data = appendPiece(data, "hello", -1.5, 1)

	var trainer []byte
	trainer = protowire.AppendTag(trainer, fieldTrainerUnkID, protowire.VarintType)
	trainer = protowire.AppendVarint(trainer, 0)
	trainer = protowire.AppendTag(trainer, fieldTrainerBosID, protowire.VarintType)
	trainer = protowire.AppendVarint(trainer, 1)
	trainer = protowire.AppendTag(trainer, fieldTrainerEosID, protowire.VarintType)
	trainer = protowire.AppendVarint(trainer, 2)
	data = protowire.AppendTag(data, fieldModelTrainerSpec, protowire.BytesType)
	data = protowire.AppendBytes(data, trainer)

	var norm []byte
	norm = protowire.AppendTag(norm, fieldNormAddDummyPrefix, protowire.VarintType)
	norm = protowire.AppendVarint(norm, 1)
	norm = protowire.AppendTag(norm, fieldNormRemoveExtraWhitespaces, protowire.VarintType)
	norm = protowire.AppendVarint(norm, 0)
	data = protowire.AppendTag(data, fieldModelNormalizerSpec, protowire.BytesType)
	data = protowire.AppendBytes(data, norm)

	m, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	if len(m.Pieces) != 2 {
		t.Fatalf("len(Pieces) = %d, want 2", len(m.Pieces))
	}
	if m.Pieces[0].Piece != "<unk>" || m.Pieces[0].Type != 2 {
		t.Errorf("Pieces[0] = %+v, want {<unk>, _, 2}", m.Pieces[0])
	}
	if m.Pieces[1].Piece != "hello" || m.Pieces[1].Score != -1.5 || m.Pieces[1].Type != 1 {
		t.Errorf("Pieces[1] = %+v, want {hello, -1.5, 1}", m.Pieces[1])
	}

	if m.TrainerSpec == nil || *m.TrainerSpec.UnkID != 0 || *m.TrainerSpec.BosID != 1 || *m.TrainerSpec.EosID != 2 {
		t.Errorf("TrainerSpec = %+v, want {0, 1, 2}", m.TrainerSpec)
	}

	if m.NormalizerSpec == nil || !*m.NormalizerSpec.AddDummyPrefix || *m.NormalizerSpec.RemoveExtraWhitespaces {
		t.Errorf("NormalizerSpec = %+v, want {true, false}", m.NormalizerSpec)
	}
}

func TestDecodeMalformedTag(t *testing.T) {
	_, err := Decode([]byte{0xff})
	if err == nil {
		t.Fatal("Decode: expected error for malformed tag, got nil")
	}
}
