package services

import "editorial-workflow-api/models"

const (
	feeBaseAmount    = 5
	feeIncludedPages = 6
	feePerExtraPage  = 10
)

// ComputeCharges applies the publication fee rule to a page count.
func ComputeCharges(pages int) (models.PublicationCharges, error) {
	if pages <= 0 {
		return models.PublicationCharges{}, newError(KindValidationFailed, "page count must be positive")
	}
	extra := pages - feeIncludedPages
	if extra < 0 {
		extra = 0
	}
	return models.PublicationCharges{
		BaseAmount:  feeBaseAmount,
		ExtraPages:  extra,
		TotalAmount: feeBaseAmount + int64(extra)*feePerExtraPage,
	}, nil
}

// minorUnits converts a major-unit amount for the gateway.
func minorUnits(amount int64) int64 {
	return amount * 100
}
