package model

import "github.com/shopspring/decimal"

// Book — запись книги в сервисе инвентаря
type Book struct {
	ID     string          `json:"id" yaml:"id" validate:"required"`
	Title  string          `json:"title" yaml:"title"`
	Author string          `json:"author" yaml:"author"`
	Price  decimal.Decimal `json:"price" yaml:"price"`
	Stock  int             `json:"stock" yaml:"stock" validate:"gte=0"`
}

// Customer — запись покупателя
// для оркестратора важен только факт существования
type Customer struct {
	ID    string `json:"id" yaml:"id" validate:"required"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email" validate:"omitempty,email"`
}
