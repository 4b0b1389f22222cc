package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"math/rand"
	"strconv"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"

	feedv1 "github.com/rosssaunders/aggbook/internal/domain/feed/v1"
)

// venueState tracks the synthetic book one producer venue maintains so the
// diffs it emits stay consistent with its last snapshot.
type venueState struct {
	name     string
	updateID int64
	bids     map[float64]float64
	asks     map[float64]float64
}

func newVenueState(name string, basePrice, spread float64, levels int) *venueState {
	v := &venueState{
		name: name,
		bids: make(map[float64]float64),
		asks: make(map[float64]float64),
	}
	for i := 0; i < levels; i++ {
		bidPrice := roundPrice(basePrice - spread/2 - float64(i)*spread/10)
		askPrice := roundPrice(basePrice + spread/2 + float64(i)*spread/10)
		v.bids[bidPrice] = randomSize()
		v.asks[askPrice] = randomSize()
	}
	return v
}

func roundPrice(p float64) float64 {
	return float64(int(p*10)) / 10
}

func randomSize() float64 {
	size := 0.01 + rand.Float64()*9.99
	return float64(int(size*1000)) / 1000
}

func rawLevels(levels map[float64]float64) []feedv1.RawLevel {
	raw := make([]feedv1.RawLevel, 0, len(levels))
	for price, size := range levels {
		raw = append(raw, feedv1.RawLevel{
			Price: strconv.FormatFloat(price, 'f', -1, 64),
			Size:  strconv.FormatFloat(size, 'f', -1, 64),
		})
	}
	return raw
}

// snapshotEvent emits the venue's full book.
func (v *venueState) snapshotEvent(symbol string) *feedv1.DepthEvent {
	v.updateID++
	return &feedv1.DepthEvent{
		Venue:         v.name,
		Symbol:        symbol,
		Type:          feedv1.EventSnapshot,
		Bids:          rawLevels(v.bids),
		Asks:          rawLevels(v.asks),
		FirstUpdateID: v.updateID,
		FinalUpdateID: v.updateID,
		Timestamp:     time.Now().UTC(),
	}
}

// diffEvent mutates a few random levels and emits the changes. About one
// change in five is a removal.
func (v *venueState) diffEvent(symbol string, basePrice, spread float64) *feedv1.DepthEvent {
	first := v.updateID + 1

	var bids, asks []feedv1.RawLevel
	changes := rand.Intn(3) + 1
	for i := 0; i < changes; i++ {
		v.updateID++
		isBid := rand.Float64() < 0.5
		levels := v.asks
		if isBid {
			levels = v.bids
		}

		var price float64
		if isBid {
			price = roundPrice(basePrice - rand.Float64()*spread)
		} else {
			price = roundPrice(basePrice + rand.Float64()*spread)
		}

		size := randomSize()
		if rand.Float64() < 0.2 {
			size = 0
			delete(levels, price)
		} else {
			levels[price] = size
		}

		raw := feedv1.RawLevel{
			Price: strconv.FormatFloat(price, 'f', -1, 64),
			Size:  strconv.FormatFloat(size, 'f', -1, 64),
		}
		if isBid {
			bids = append(bids, raw)
		} else {
			asks = append(asks, raw)
		}
	}

	return &feedv1.DepthEvent{
		Venue:         v.name,
		Symbol:        symbol,
		Type:          feedv1.EventDiff,
		Bids:          bids,
		Asks:          asks,
		FirstUpdateID: first,
		FinalUpdateID: v.updateID,
		Timestamp:     time.Now().UTC(),
	}
}

func main() {
	var (
		brokers   = flag.String("brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
		topic     = flag.String("topic", "depth-events", "Kafka topic name")
		symbol    = flag.String("symbol", "BTC-USDT", "Instrument symbol")
		venues    = flag.String("venues", "binance,coinbase", "Venue names (comma-separated)")
		delay     = flag.Duration("delay", 100*time.Millisecond, "Delay between events")
		count     = flag.Int("count", 1000, "Number of diff events to send per venue")
		basePrice = flag.Float64("base-price", 64000.0, "Mid price for the synthetic book")
		spread    = flag.Float64("spread", 50.0, "Price spread range")
		levels    = flag.Int("levels", 10, "Book depth per side in the initial snapshot")
		gapEvery  = flag.Int("gap-every", 0, "Inject a sequence gap every N diffs (0 disables)")
	)
	flag.Parse()

	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:        *topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
	}
	defer writer.Close()

	ctx := context.Background()

	states := make([]*venueState, 0)
	for _, name := range strings.Split(*venues, ",") {
		states = append(states, newVenueState(strings.TrimSpace(name), *basePrice, *spread, *levels))
	}

	log.Printf("Sending depth events to broker %s, topic %s, venues %s", *brokers, *topic, *venues)

	// Every venue opens with a full snapshot
	for _, v := range states {
		if err := send(ctx, writer, v.snapshotEvent(*symbol)); err != nil {
			log.Fatalf("Failed to send snapshot for %s: %v", v.name, err)
		}
		log.Printf("Sent snapshot: %s | %d bids, %d asks", v.name, len(v.bids), len(v.asks))
	}

	sent := 0
	for i := 0; i < *count; i++ {
		for _, v := range states {
			if *gapEvery > 0 && sent > 0 && sent%*gapEvery == 0 {
				// Skip ids so the consumer sees a gap and waits for the
				// recovery snapshot that follows
				v.updateID += 10
				if err := send(ctx, writer, v.diffEvent(*symbol, *basePrice, *spread)); err != nil {
					log.Printf("Failed to send gap diff for %s: %v", v.name, err)
				}
				if err := send(ctx, writer, v.snapshotEvent(*symbol)); err != nil {
					log.Printf("Failed to send recovery snapshot for %s: %v", v.name, err)
				}
				log.Printf("Injected gap and recovery snapshot: %s", v.name)
				sent++
				continue
			}

			if err := send(ctx, writer, v.diffEvent(*symbol, *basePrice, *spread)); err != nil {
				log.Printf("Failed to send diff for %s: %v", v.name, err)
				continue
			}
			sent++

			if sent%100 == 0 {
				log.Printf("Sent %d diffs, %s at updateId %d", sent, v.name, v.updateID)
			}
		}
		time.Sleep(*delay)
	}

	log.Printf("Successfully sent %d diff events across %d venues", sent, len(states))
}

func send(ctx context.Context, writer *kafka.Writer, event *feedv1.DepthEvent) error {
	buf, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.Venue),
		Value: buf,
		Time:  event.Timestamp,
	})
}
