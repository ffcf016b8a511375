package poller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/fjod/shopgate/cart-service/internal/domain"
)

const (
	Topic   = "checkout-outbox"
	GroupID = "cart-service-consumer"
)

var errBadMessage = errors.New("malformed checkout message")

type CartClearer interface {
	ClearCart(ctx context.Context, memberID int64) (*domain.Cart, error)
}

type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// Poller empties a member's cart once checkout has published the order.
type Poller struct {
	carts   CartClearer
	reader  MessageReader
	logger  zerolog.Logger
	backoff time.Duration
}

func NewPoller(carts CartClearer, logger zerolog.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    Topic,
		GroupID:  GroupID,
		MaxBytes: 10e6, // 10MB
	})
	return newPoller(carts, reader, logger)
}

func newPoller(carts CartClearer, reader MessageReader, logger zerolog.Logger) *Poller {
	return &Poller{carts: carts, reader: reader, logger: logger, backoff: time.Second}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		m, err := p.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Error().Err(err).Msg("error reading checkout message")
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.backoff):
			}
			continue
		}

		if err := p.handle(ctx, m); err != nil {
			p.logger.Error().Err(err).
				Int("partition", m.Partition).
				Int64("offset", m.Offset).
				Msg("checkout message skipped")
		}
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.logger.Warn().Err(err).Msg("error closing reader")
	}
}

func (p *Poller) handle(ctx context.Context, m kafka.Message) error {
	memberID, err := parseMemberID(m.Value)
	if err != nil {
		return err
	}

	if _, err := p.carts.ClearCart(ctx, memberID); err != nil {
		return fmt.Errorf("failed to clear cart for member %d: %w", memberID, err)
	}
	p.logger.Info().Int64("member_id", memberID).Msg("cart cleared after checkout")
	return nil
}

// parseMemberID reads user_id, sent either as a string or a number.
func parseMemberID(value []byte) (int64, error) {
	dec := json.NewDecoder(bytes.NewReader(value))
	dec.UseNumber()

	var payload map[string]interface{}
	if err := dec.Decode(&payload); err != nil {
		return 0, fmt.Errorf("%w: %w", errBadMessage, err)
	}

	var raw string
	switch v := payload["user_id"].(type) {
	case string:
		raw = v
	case json.Number:
		raw = v.String()
	default:
		return 0, fmt.Errorf("%w: missing or invalid user_id", errBadMessage)
	}

	memberID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || memberID <= 0 {
		return 0, fmt.Errorf("%w: user_id %q is not a member id", errBadMessage, raw)
	}
	return memberID, nil
}
