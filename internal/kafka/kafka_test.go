package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Domenick1991/flightbooking/internal/logging"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	failures int
	messages []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestProducer_Publish(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w, log: logging.Discard()}

	ev := BookingEvent{Type: EventBookingCreated, BookingID: "b-1", FlightID: 3, Seats: []string{"1A"}}
	require.NoError(t, p.Publish(context.Background(), "booking-events", "b-1", ev))

	require.Len(t, w.messages, 1)
	assert.Equal(t, "booking-events", w.messages[0].Topic)
	assert.Equal(t, []byte("b-1"), w.messages[0].Key)

	decoded, err := Decode(w.messages[0])
	require.NoError(t, err)
	assert.Equal(t, ev.BookingID, decoded.BookingID)
	assert.Equal(t, []string{"1A"}, decoded.Seats)
}

func TestProducer_PublishWithRetry(t *testing.T) {
	w := &fakeWriter{failures: 1}
	p := &Producer{writer: w, log: logging.Discard()}

	require.NoError(t, p.PublishWithRetry(context.Background(), "t", "k", BookingEvent{}, 3))
	assert.Len(t, w.messages, 1)

	w = &fakeWriter{failures: 5}
	p = &Producer{writer: w, log: logging.Discard()}
	err := p.PublishWithRetry(context.Background(), "t", "k", BookingEvent{}, 1)
	assert.Error(t, err)
	assert.Empty(t, w.messages)
}

type fakeReader struct {
	messages []kafka.Message
}

func (r *fakeReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.messages) == 0 {
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) Close() error { return nil }

func TestConsumer_Consume(t *testing.T) {
	payload, err := json.Marshal(BookingEvent{Type: EventTicketCheckedIn, TicketID: "t-1"})
	require.NoError(t, err)
	c := &Consumer{reader: &fakeReader{messages: []kafka.Message{{Value: payload}, {Value: payload}}}}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var seen []string
	err = c.Consume(ctx, func(_ context.Context, msg kafka.Message) error {
		ev, err := Decode(msg)
		if err != nil {
			return err
		}
		seen = append(seen, ev.TicketID)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"t-1", "t-1"}, seen)
}

func TestConsumer_HandlerErrorStops(t *testing.T) {
	c := &Consumer{reader: &fakeReader{messages: []kafka.Message{{Value: []byte("{bad")}}}}

	err := c.Consume(context.Background(), func(_ context.Context, msg kafka.Message) error {
		_, err := Decode(msg)
		return err
	})
	assert.Error(t, err)
}
