package client

// имена операций канала, общие для оркестратора и внешних сервисов
const (
	PatternGetCustomer   = "getCustomer"
	PatternGetBook       = "getBook"
	PatternIsBookInStock = "isBookInStock"
	PatternDecreaseStock = "DecreaseStock"
	PatternIncreaseStock = "IncreaseStock"
)

type CustomerLookup struct {
	CustomerID string `json:"customerId"`
}

type BookLookup struct {
	BookID string `json:"bookId"`
}

// StockChange — payload проверки остатка и изменения остатка
type StockChange struct {
	BookID   string `json:"bookId"`
	Quantity int    `json:"quantity"`
}
