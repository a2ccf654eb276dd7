package analysis

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/iwvelando/rental-forecast/pkg/mathutil"
	"github.com/iwvelando/rental-forecast/pkg/returns"
)

// RehabRequest describes a renovation. LoanBalance defaults to the financed
// share of the price when omitted.
type RehabRequest struct {
	PurchasePrice    float64  `json:"purchasePrice" validate:"gte=0"`
	DownPaymentPct   float64  `json:"downPaymentPct" validate:"gte=0,lte=100"`
	RehabCost        float64  `json:"rehabCost" validate:"gte=0"`
	LoanBalance      *float64 `json:"loanBalance,omitempty" validate:"omitempty,gte=0"`
	AfterRepairValue float64  `json:"afterRepairValue" validate:"gte=0"`
}

// RehabResult is the position once the renovation is complete.
type RehabResult struct {
	DownPayment float64 `json:"downPayment"`
	Invested    float64 `json:"invested"`
	LoanBalance float64 `json:"loanBalance"`
	Equity      float64 `json:"equity"`
	Gain        float64 `json:"gain"`
	ROI         float64 `json:"roi"`
	ROIDefined  bool    `json:"roiDefined"`
}

// Rehab computes the equity and return created by a renovation: the cash
// invested is the down payment plus the rehab cost, and the equity is the
// after-repair value less the loan balance.
func Rehab(req RehabRequest) (*RehabResult, error) {
	values := []float64{req.PurchasePrice, req.DownPaymentPct, req.RehabCost, req.AfterRepairValue}
	if req.LoanBalance != nil {
		values = append(values, *req.LoanBalance)
	}
	if !mathutil.AllFinite(values...) {
		return nil, fmt.Errorf("%w: all amounts must be finite numbers", ErrInvalidRequest)
	}
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, validationErrors(err))
	}

	res := &RehabResult{DownPayment: mathutil.ApplyPercentage(req.PurchasePrice, req.DownPaymentPct)}
	res.Invested = res.DownPayment + req.RehabCost
	res.LoanBalance = req.PurchasePrice - res.DownPayment
	if req.LoanBalance != nil {
		res.LoanBalance = *req.LoanBalance
	}
	res.Equity = req.AfterRepairValue - res.LoanBalance
	res.Gain = res.Equity - res.Invested
	res.ROI, res.ROIDefined = returns.ROI(res.Gain, res.Invested)
	return res, nil
}

func validationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, fieldError(fe))
	}
	return errors.Join(errs...)
}
