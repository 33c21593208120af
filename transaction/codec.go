package transaction

import (
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// Borsh lengths are little-endian u32; strings are length-prefixed UTF-8.

func writeBytes(enc *bin.Encoder, b []byte) error {
	if err := enc.WriteUint32(uint32(len(b)), bin.LE); err != nil {
		return err
	}
	return enc.WriteBytes(b, false)
}

func writeString(enc *bin.Encoder, s string) error {
	return writeBytes(enc, []byte(s))
}

func writeU128(enc *bin.Encoder, v *big.Int) error {
	if v == nil {
		v = new(big.Int)
	}
	if v.Sign() < 0 || v.Cmp(interfaces.MaxU128) > 0 {
		return fmt.Errorf("amount %s does not fit in u128", v)
	}
	mask := new(big.Int).SetUint64(^uint64(0))
	lo := new(big.Int).And(v, mask).Uint64()
	hi := new(big.Int).Rsh(v, 64).Uint64()
	if err := enc.WriteUint64(lo, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint64(hi, bin.LE)
}

func writePublicKey(enc *bin.Encoder, pk interfaces.PublicKey) error {
	if err := enc.WriteUint8(interfaces.KeyTypeED25519); err != nil {
		return err
	}
	return enc.WriteBytes(pk[:], false)
}

func readBytes(dec *bin.Decoder) ([]byte, error) {
	n, err := dec.ReadUint32(bin.LE)
	if err != nil {
		return nil, err
	}
	if int(n) > dec.Remaining() {
		return nil, fmt.Errorf("length %d exceeds remaining %d bytes", n, dec.Remaining())
	}
	if n == 0 {
		return []byte{}, nil
	}
	return dec.ReadNBytes(int(n))
}

func readString(dec *bin.Decoder) (string, error) {
	b, err := readBytes(dec)
	return string(b), err
}

func readU128(dec *bin.Decoder) (*big.Int, error) {
	lo, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, err
	}
	hi, err := dec.ReadUint64(bin.LE)
	if err != nil {
		return nil, err
	}
	v := new(big.Int).Lsh(new(big.Int).SetUint64(hi), 64)
	return v.Or(v, new(big.Int).SetUint64(lo)), nil
}

func readPublicKey(dec *bin.Decoder) (interfaces.PublicKey, error) {
	var pk interfaces.PublicKey
	keyType, err := dec.ReadUint8()
	if err != nil {
		return pk, err
	}
	if keyType != interfaces.KeyTypeED25519 {
		return pk, fmt.Errorf("unsupported key type %d", keyType)
	}
	b, err := dec.ReadNBytes(len(pk))
	if err != nil {
		return pk, err
	}
	copy(pk[:], b)
	return pk, nil
}
