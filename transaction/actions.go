package transaction

import (
	"fmt"
	"math/big"

	bin "github.com/gagliardetto/binary"
	"github.com/ruteri/commit-reveal-driver/interfaces"
)

// Action discriminants, in the order the ledger defines them.
const (
	ActionCreateAccount uint8 = iota
	ActionDeployContract
	ActionFunctionCall
	ActionTransfer
	ActionStake
	ActionAddKey
	ActionDeleteKey
	ActionDeleteAccount
)

const permissionFullAccess uint8 = 1

// Action is one step of a transaction.
type Action interface {
	Kind() uint8
	bin.EncoderDecoder
}

// CreateAccount creates the receiver account.
type CreateAccount struct{}

func (CreateAccount) Kind() uint8 { return ActionCreateAccount }

func (a *CreateAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	return nil
}

func (a *CreateAccount) UnmarshalWithDecoder(dec *bin.Decoder) error {
	return nil
}

// DeployContract replaces the receiver's code.
type DeployContract struct {
	Code []byte
}

func (DeployContract) Kind() uint8 { return ActionDeployContract }

func (a *DeployContract) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeBytes(enc, a.Code)
}

func (a *DeployContract) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	a.Code, err = readBytes(dec)
	return err
}

// FunctionCall invokes a method on the receiver.
type FunctionCall struct {
	MethodName string
	Args       []byte
	Gas        uint64
	Deposit    *big.Int
}

func (FunctionCall) Kind() uint8 { return ActionFunctionCall }

func (a *FunctionCall) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeString(enc, a.MethodName); err != nil {
		return err
	}
	if err := writeBytes(enc, a.Args); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Gas, bin.LE); err != nil {
		return err
	}
	return writeU128(enc, a.Deposit)
}

func (a *FunctionCall) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.MethodName, err = readString(dec); err != nil {
		return err
	}
	if a.Args, err = readBytes(dec); err != nil {
		return err
	}
	if a.Gas, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	a.Deposit, err = readU128(dec)
	return err
}

// Transfer moves a deposit to the receiver.
type Transfer struct {
	Deposit *big.Int
}

func (Transfer) Kind() uint8 { return ActionTransfer }

func (a *Transfer) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeU128(enc, a.Deposit)
}

func (a *Transfer) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	a.Deposit, err = readU128(dec)
	return err
}

// AddKey attaches a full-access key to the receiver.
type AddKey struct {
	PublicKey interfaces.PublicKey
	Nonce     uint64
}

func (AddKey) Kind() uint8 { return ActionAddKey }

func (a *AddKey) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writePublicKey(enc, a.PublicKey); err != nil {
		return err
	}
	if err := enc.WriteUint64(a.Nonce, bin.LE); err != nil {
		return err
	}
	return enc.WriteUint8(permissionFullAccess)
}

func (a *AddKey) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if a.PublicKey, err = readPublicKey(dec); err != nil {
		return err
	}
	if a.Nonce, err = dec.ReadUint64(bin.LE); err != nil {
		return err
	}
	permission, err := dec.ReadUint8()
	if err != nil {
		return err
	}
	if permission != permissionFullAccess {
		return fmt.Errorf("unsupported access key permission %d", permission)
	}
	return nil
}

// DeleteAccount removes the receiver and sends its balance to the beneficiary.
type DeleteAccount struct {
	BeneficiaryID interfaces.AccountID
}

func (DeleteAccount) Kind() uint8 { return ActionDeleteAccount }

func (a *DeleteAccount) MarshalWithEncoder(enc *bin.Encoder) error {
	return writeString(enc, string(a.BeneficiaryID))
}

func (a *DeleteAccount) UnmarshalWithDecoder(dec *bin.Decoder) error {
	s, err := readString(dec)
	a.BeneficiaryID = interfaces.AccountID(s)
	return err
}

func newAction(kind uint8) (Action, error) {
	switch kind {
	case ActionCreateAccount:
		return &CreateAccount{}, nil
	case ActionDeployContract:
		return &DeployContract{}, nil
	case ActionFunctionCall:
		return &FunctionCall{}, nil
	case ActionTransfer:
		return &Transfer{}, nil
	case ActionAddKey:
		return &AddKey{}, nil
	case ActionDeleteAccount:
		return &DeleteAccount{}, nil
	default:
		return nil, fmt.Errorf("unsupported action kind %d", kind)
	}
}
