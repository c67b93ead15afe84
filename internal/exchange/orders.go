package exchange

import (
	"context"

	"arbscanner/internal/model"
)

// DisabledOrderPlacer rejects every order. It stands in for exchanges without
// order routing so the real-mode path still records an outcome.
type DisabledOrderPlacer struct{}

func (DisabledOrderPlacer) PlaceOrder(ctx context.Context, req model.OrderRequest) (model.OrderResult, error) {
	if err := ctx.Err(); err != nil {
		return model.OrderResult{Status: model.OrderError, Reason: err.Error()}, err
	}
	return model.OrderResult{
		Status: model.OrderRejected,
		Reason: "order placement disabled for " + req.Exchange,
	}, nil
}
