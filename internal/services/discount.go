package services

import (
	"skillup-lms/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CalculateDiscount считает скидку и итоговую цену курса.
// Цена отбрасывает доли пайсы, скидка округляется до пайсы и затем ограничивается ценой,
// поэтому discount + final никогда не превышает coursePrice.
func CalculateDiscount(coursePrice float64, discountType models.DiscountType, discountValue float64) models.DiscountQuote {
	price := decimal.NewFromFloat(coursePrice).Truncate(2)
	if price.IsNegative() {
		price = decimal.Zero
	}
	value := decimal.NewFromFloat(discountValue)

	var discount decimal.Decimal
	switch discountType {
	case models.DiscountTypePercentage:
		discount = price.Mul(value).Div(hundred)
	case models.DiscountTypeFixedAmount:
		discount = value
	default:
		discount = decimal.Zero
	}

	discount = discount.Round(2)
	if discount.IsNegative() {
		discount = decimal.Zero
	}
	if discount.GreaterThan(price) {
		discount = price
	}

	return models.DiscountQuote{
		DiscountAmount: discount.InexactFloat64(),
		FinalPrice:     price.Sub(discount).InexactFloat64(),
	}
}
