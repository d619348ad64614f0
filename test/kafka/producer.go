// этот код не зависит от приложения,
// и нужен только для ручной проверки сервиса книг: отправляет getBook через кафку и печатает ответ
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/asquebay/bookstore-orders/internal/client"
	"github.com/asquebay/bookstore-orders/internal/config"
	"github.com/asquebay/bookstore-orders/internal/lib/logger"
	"github.com/asquebay/bookstore-orders/internal/transport/kafka"
)

func main() {
	brokerAddress := flag.String("broker", "localhost:9092", "kafka broker address")
	bookID := flag.String("book", "B1", "book id to look up")
	flag.Parse()

	cfg := config.Kafka{
		Brokers:    []string{*brokerAddress},
		Queues:     config.Queues{Books: "book_queue"},
		ReplyTopic: "order_replies",
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kc, err := kafka.NewClient(ctx, cfg, 10*time.Second, logger.New("DEBUG", "text"))
	if err != nil {
		log.Fatalf("Failed to create client: %v", err)
	}
	defer kc.Close()
	go kc.Run(ctx)

	books := client.NewInventoryClient(kc.Queue(cfg.Queues.Books), nil)

	log.Printf("Sending getBook(%s) to Kafka...", *bookID)
	book, err := books.GetBook(ctx, *bookID)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	fmt.Printf("Reply: %+v\n", book)
}
