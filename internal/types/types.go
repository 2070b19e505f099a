// README: Shared value objects used across modules.
package types

import "github.com/google/uuid"

type ID string

func NewID() ID {
	return ID(uuid.New().String())
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Money is a fixed-point currency amount in whole currency units.
type Money struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// DefaultCurrency is the single ledger currency.
const DefaultCurrency = "PKR"

func NewMoney(amount int64) Money {
	return Money{Amount: amount, Currency: DefaultCurrency}
}

type Role string

const (
	RoleRequester Role = "requester"
	RoleProvider  Role = "provider"
	RoleOperator  Role = "operator"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRequester, RoleProvider, RoleOperator:
		return true
	}
	return false
}

type VehicleClass string

const (
	VehicleBike  VehicleClass = "Bike"
	VehicleCar   VehicleClass = "Car"
	VehicleACCar VehicleClass = "AC Car"
)

func (v VehicleClass) Valid() bool {
	switch v {
	case VehicleBike, VehicleCar, VehicleACCar:
		return true
	}
	return false
}
