package signer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ErrRejected is returned when the key holder declines a signature request.
var ErrRejected = errors.New("signature request rejected")

type Signer interface {
	Address() common.Address
	SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error)
}

// Confirmer asks the key holder to approve a request described by prompt.
type Confirmer interface {
	Confirm(prompt string) (bool, error)
}

type ConfirmFunc func(prompt string) (bool, error)

func (f ConfirmFunc) Confirm(prompt string) (bool, error) { return f(prompt) }

// Prompting gates every signature on a confirmation, the way a browser wallet
// pops a signing dialog.
type Prompting struct {
	Inner   Signer
	Confirm Confirmer
}

func (p *Prompting) Address() common.Address { return p.Inner.Address() }

func (p *Prompting) SignTx(chainID *big.Int, tx *types.Transaction) (*types.Transaction, error) {
	if p.Confirm != nil {
		to := "contract creation"
		if tx.To() != nil {
			to = tx.To().Hex()
		}
		ok, err := p.Confirm.Confirm(fmt.Sprintf("sign transaction to %s on chain %s (value %s wei)?", to, chainID, tx.Value()))
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrRejected
		}
	}
	return p.Inner.SignTx(chainID, tx)
}
