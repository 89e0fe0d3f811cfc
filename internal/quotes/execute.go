package quotes

import (
	"context"
	"fmt"

	"github.com/ggonzalez94/defi-intents/internal/chainctx"
	clierr "github.com/ggonzalez94/defi-intents/internal/errors"
)

// Stage is a step of executing a plan, reported as it starts.
type Stage string

const (
	StageCreating   Stage = "creating"
	StageSigning    Stage = "signing"
	StageSubmitting Stage = "submitting"
)

// OrderResult identifies a submitted order.
type OrderResult struct {
	OrderID string
	TxHash  string
	Block   uint64
	GasUsed uint64
}

// Execute builds, signs and submits q's plan with clients and waits for inclusion.
// onStage, when set, is called as each stage begins.
func Execute(ctx context.Context, q *Quote, clients chainctx.Clients, onStage func(Stage)) (OrderResult, error) {
	if onStage == nil {
		onStage = func(Stage) {}
	}
	if q == nil || q.Plan == nil {
		return OrderResult{}, clierr.New(clierr.CodeInternal, "quote has no execution plan")
	}
	if clients.Execution == nil {
		return OrderResult{}, clierr.NewKind(clierr.KindClientUnavailable, "no execution client")
	}

	onStage(StageCreating)
	call, err := q.Plan.CreateOrder(ctx, clients)
	if err != nil {
		return OrderResult{}, err
	}

	onStage(StageSigning)
	tx, err := clients.Execution.Sign(ctx, call)
	if err != nil {
		return OrderResult{}, err
	}

	onStage(StageSubmitting)
	hash, err := clients.Execution.Submit(ctx, tx)
	if err != nil {
		return OrderResult{}, err
	}
	receipt, err := clients.Execution.Wait(ctx, hash)
	if err != nil {
		return OrderResult{TxHash: hash.Hex()}, err
	}
	result := OrderResult{
		OrderID: fmt.Sprintf("%s:%d:%s", q.Provider, clients.ChainID, hash.Hex()),
		TxHash:  hash.Hex(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.Block = receipt.BlockNumber.Uint64()
	}
	return result, nil
}
