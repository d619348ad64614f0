// Package inventory — сервис книг и остатков, который отвечает оркестратору через канал
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/asquebay/bookstore-orders/internal/channel"
	"github.com/asquebay/bookstore-orders/internal/client"
	"github.com/asquebay/bookstore-orders/internal/model"
)

var (
	ErrBookNotFound      = fmt.Errorf("book %w", channel.ErrNotFound)
	ErrInsufficientStock = errors.New("not enough books in stock")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
)

// Service хранит книги в памяти и применяет изменения остатка атомарно для одной книги
type Service struct {
	mu    sync.Mutex
	books map[string]model.Book
	log   *slog.Logger
}

func NewService(books []model.Book, log *slog.Logger) *Service {
	s := &Service{
		books: make(map[string]model.Book, len(books)),
		log:   log.With(slog.String("component", "inventory")),
	}
	for _, b := range books {
		s.books[b.ID] = b
	}
	return s
}

// Register привязывает операции сервиса к именам канала
func (s *Service) Register(r *channel.Router) {
	r.Handle(client.PatternGetBook, channel.HandleFunc(func(ctx context.Context, in client.BookLookup) (model.Book, error) {
		return s.GetBook(ctx, in.BookID)
	}))
	r.Handle(client.PatternIsBookInStock, channel.HandleFunc(func(ctx context.Context, in client.StockChange) (bool, error) {
		return s.IsBookInStock(ctx, in.BookID, in.Quantity)
	}))
	r.Handle(client.PatternIncreaseStock, channel.HandleFunc(func(ctx context.Context, in client.StockChange) (model.Book, error) {
		return s.IncreaseStock(ctx, in.BookID, in.Quantity)
	}))
	r.On(client.PatternDecreaseStock, channel.EventFunc(func(ctx context.Context, in client.StockChange) error {
		_, err := s.DecreaseStock(ctx, in.BookID, in.Quantity)
		return err
	}))
}

func (s *Service) GetBook(_ context.Context, bookID string) (model.Book, error) {
	const op = "inventory.Service.GetBook"

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return model.Book{}, fmt.Errorf("%s: %w", op, ErrBookNotFound)
	}
	return book, nil
}

// IsBookInStock сравнивает текущий остаток с запрошенным количеством
func (s *Service) IsBookInStock(_ context.Context, bookID string, quantity int) (bool, error) {
	const op = "inventory.Service.IsBookInStock"

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return false, fmt.Errorf("%s: %w", op, ErrBookNotFound)
	}
	return book.Stock >= quantity, nil
}

// DecreaseStock списывает остаток, в минус не уходит
func (s *Service) DecreaseStock(_ context.Context, bookID string, quantity int) (model.Book, error) {
	const op = "inventory.Service.DecreaseStock"
	log := s.log.With(slog.String("op", op), slog.String("book_id", bookID), slog.Int("quantity", quantity))

	if quantity <= 0 {
		return model.Book{}, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return model.Book{}, fmt.Errorf("%s: %w", op, ErrBookNotFound)
	}
	if book.Stock < quantity {
		log.Warn("stock decrement rejected", slog.Int("stock", book.Stock))
		return model.Book{}, fmt.Errorf("%s: %w", op, ErrInsufficientStock)
	}

	book.Stock -= quantity
	s.books[bookID] = book
	log.Info("stock decreased", slog.Int("stock", book.Stock))
	return book, nil
}

// IncreaseStock возвращает экземпляры на склад
func (s *Service) IncreaseStock(_ context.Context, bookID string, quantity int) (model.Book, error) {
	const op = "inventory.Service.IncreaseStock"
	log := s.log.With(slog.String("op", op), slog.String("book_id", bookID), slog.Int("quantity", quantity))

	if quantity <= 0 {
		return model.Book{}, fmt.Errorf("%s: %w", op, ErrInvalidQuantity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	if !ok {
		return model.Book{}, fmt.Errorf("%s: %w", op, ErrBookNotFound)
	}

	book.Stock += quantity
	s.books[bookID] = book
	log.Info("stock increased", slog.Int("stock", book.Stock))
	return book, nil
}

// Stock возвращает текущий остаток книги
func (s *Service) Stock(bookID string) (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	book, ok := s.books[bookID]
	return book.Stock, ok
}
