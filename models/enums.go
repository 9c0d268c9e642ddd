package models

import "fmt"

type SaleState string

const (
	SaleStatePending   SaleState = "pending"
	SaleStatePaid      SaleState = "paid"
	SaleStateDebt      SaleState = "debt"
	SaleStateCancelled SaleState = "cancelled"
)

func (s SaleState) IsValid() bool {
	switch s {
	case SaleStatePending, SaleStatePaid, SaleStateDebt, SaleStateCancelled:
		return true
	}
	return false
}

func ParseSaleState(s string) (SaleState, error) {
	state := SaleState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid sale state %q", s)
	}
	return state, nil
}

type CashMovementType string

const (
	CashMovementTypeEntry CashMovementType = "entry"
	CashMovementTypeExit  CashMovementType = "exit"
)

func (t CashMovementType) IsValid() bool {
	return t == CashMovementTypeEntry || t == CashMovementTypeExit
}

func ParseCashMovementType(s string) (CashMovementType, error) {
	t := CashMovementType(s)
	if !t.IsValid() {
		return "", fmt.Errorf("invalid cash movement type %q", s)
	}
	return t, nil
}

type PaymentMethod string

const (
	PaymentMethodCash        PaymentMethod = "cash"
	PaymentMethodDebitCard   PaymentMethod = "debit_card"
	PaymentMethodCreditCard  PaymentMethod = "credit_card"
	PaymentMethodTransfer    PaymentMethod = "transfer"
	PaymentMethodMercadoPago PaymentMethod = "mercadopago"
)

func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodDebitCard, PaymentMethodCreditCard,
		PaymentMethodTransfer, PaymentMethodMercadoPago:
		return true
	}
	return false
}

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	m := PaymentMethod(s)
	if !m.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", s)
	}
	return m, nil
}

type StockAdjustMode string

const (
	StockAdjustModeAdditive StockAdjustMode = "additive"
	StockAdjustModeReplace  StockAdjustMode = "replace"
)

func (m StockAdjustMode) IsValid() bool {
	return m == StockAdjustModeAdditive || m == StockAdjustModeReplace
}
