// Package repository содержит общие для всех хранилищ заказов ошибки
package repository

import "errors"

var (
	ErrOrderNotFound = errors.New("order not found")
	ErrOrderExists   = errors.New("order already exists")
)
