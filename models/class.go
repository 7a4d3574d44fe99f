package models

import "github.com/shopspring/decimal"

type Class struct {
	ID        string          `json:"id"`
	TrainerID string          `json:"trainer_id"`
	Title     string          `json:"title"`
	Price     decimal.Decimal `json:"price"`
	Duration  int             `json:"duration"` // minutes
}
