package main

import (
	"context"
	"encoding/json"
	"flag"
	"math/rand/v2"
	"os"
	"strings"
	"time"

	ingestv1 "github.com/muhammadchandra19/tickstore/internal/domain/ingest/v1"
	"github.com/muhammadchandra19/tickstore/pkg/logger"
	"github.com/samber/lo"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
)

// generateEvents creates count order-book events per symbol around basePrice.
// About a third of the events are trades; the rest add, restate or remove
// levels already on the book.
func generateEvents(symbols []string, count int, basePrice, priceSpread float64, start time.Time) []ingestv1.RawEvent {
	events := make([]ingestv1.RawEvent, 0, count*len(symbols))

	for _, symbol := range symbols {
		resting := map[string]map[string]bool{"bid": {}, "ask": {}}
		ts := uint64(start.UnixMicro())

		for i := 0; i < count; i++ {
			ts += uint64(rand.IntN(5000) + 1)

			side := "bid"
			if rand.Float64() < 0.5 {
				side = "ask"
			}

			offset := rand.Float64() * priceSpread * 0.5
			if side == "bid" {
				offset = -offset
			}
			price := roundTo(basePrice+offset, 1)
			if price <= 0 {
				price = basePrice
			}
			size := roundTo(0.01+rand.Float64()*9.99, 3)

			kind := "add"
			switch r := rand.Float64(); {
			case r < 0.3:
				kind = "trade"
			case r < 0.5 && len(resting[side]) > 0:
				kind = "update"
				price = parsePrice(lo.Sample(lo.Keys(resting[side])))
			case r < 0.65 && len(resting[side]) > 0:
				kind = "delete"
				price = parsePrice(lo.Sample(lo.Keys(resting[side])))
				size = 0
			}

			key := decimal.NewFromFloat(price).String()
			switch kind {
			case "add", "update":
				resting[side][key] = true
			case "delete":
				delete(resting[side], key)
			}

			events = append(events, ingestv1.RawEvent{
				Symbol:    symbol,
				Timestamp: ts,
				Sequence:  uint64(i + 1),
				Kind:      kind,
				Side:      side,
				Price:     price,
				Size:      size,
			})
		}
	}

	return events
}

func roundTo(v float64, places int32) float64 {
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

func parsePrice(s string) float64 {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}
	f, _ := d.Float64()
	return f
}

func main() {
	var (
		brokers     = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		topic       = flag.String("topic", "raw-events", "Kafka topic name")
		symbols     = flag.String("symbols", "bnc_btc_eth", "Symbols to generate events for (comma-separated)")
		file        = flag.String("file", "", "JSON file with events (optional, generates events if not provided)")
		delay       = flag.Duration("delay", 10*time.Millisecond, "Delay between sending events")
		count       = flag.Int("count", 1000, "Number of events to generate per symbol")
		basePrice   = flag.Float64("base-price", 3945.5, "Base price for events")
		priceSpread = flag.Float64("price-spread", 200.0, "Price spread range")
	)
	flag.Parse()

	log, err := logger.NewLogger()
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	ctx := context.Background()

	var events []ingestv1.RawEvent
	if *file != "" {
		data, err := os.ReadFile(*file)
		if err != nil {
			log.Error(err, logger.NewField("file", *file))
			os.Exit(1)
		}
		if err := json.Unmarshal(data, &events); err != nil {
			log.Error(err, logger.NewField("file", *file))
			os.Exit(1)
		}
		log.Info("loaded events from file", logger.NewField("events", len(events)), logger.NewField("file", *file))
	} else {
		names := strings.Split(*symbols, ",")
		events = generateEvents(names, *count, *basePrice, *priceSpread, time.Now())
		log.Info("generated events", logger.NewField("events", len(events)), logger.NewField("symbols", names))
	}

	log.Info("sending events", logger.NewField("brokers", *brokers), logger.NewField("topic", *topic), logger.NewField("delay", delay.String()))

	sent := 0
	for i, event := range events {
		payload, err := json.Marshal(event)
		if err != nil {
			log.Error(err, logger.NewField("event", i+1))
			continue
		}

		msg := kafka.Message{
			Key:   []byte(event.Symbol),
			Value: payload,
			Time:  time.Now(),
		}
		if err := writer.WriteMessages(ctx, msg); err != nil {
			log.Error(err, logger.NewField("event", i+1), logger.NewField("symbol", event.Symbol))
			continue
		}
		sent++

		if (i+1)%100 == 0 || i == len(events)-1 {
			log.Info("progress",
				logger.NewField("sent", i+1),
				logger.NewField("total", len(events)),
				logger.NewField("symbol", event.Symbol),
				logger.NewField("kind", event.Kind),
				logger.NewField("price", event.Price),
			)
		}

		if i < len(events)-1 {
			time.Sleep(*delay)
		}
	}

	counts := lo.CountValuesBy(events, func(e ingestv1.RawEvent) string { return e.Kind })
	log.Info("summary",
		logger.NewField("sent", sent),
		logger.NewField("total", len(events)),
		logger.NewField("add", counts["add"]),
		logger.NewField("update", counts["update"]),
		logger.NewField("delete", counts["delete"]),
		logger.NewField("trade", counts["trade"]),
	)
}
