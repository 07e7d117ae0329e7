package outbox

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"

	platformevents "example.com/officereport/internal/platform/events"
)

func TestEncodeWireFormat(t *testing.T) {
	frame := encodeWireFormat(258, []byte(`{"a":1}`))

	require.Equal(t, byte(0), frame[0], "magic byte")
	require.Equal(t, uint32(258), binary.BigEndian.Uint32(frame[1:5]))
	require.Equal(t, `{"a":1}`, string(frame[5:]))
}

func TestDeliverGroupsByTopicAndSetsHeaders(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{id: 5}
	d := &Dispatcher{producer: producer, registry: registry, logger: zerolog.Nop()}

	msgs := []Message{
		testMessage(1, "norte", "office_records"),
		testMessage(2, "sur", "office_records"),
		testMessage(3, "norte", "office_records_audit"),
	}
	require.NoError(t, d.deliver(context.Background(), msgs))

	require.Len(t, producer.writes, 2)
	require.Equal(t, "office_records", producer.writes[0].topic)
	require.Len(t, producer.writes[0].messages, 2)
	require.Equal(t, "office_records_audit", producer.writes[1].topic)

	first := producer.writes[0].messages[0]
	require.Equal(t, []byte("norte"), first.Key)
	require.Equal(t, uint32(5), binary.BigEndian.Uint32(first.Value[1:5]))
	headers := map[string]string{}
	for _, h := range first.Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, "record.submitted", headers["event_type"])
	require.Equal(t, "norte", headers["office"])
	require.Equal(t, "office_records-value", headers["schema_subject"])

	require.Len(t, registry.calls, 1, "schema id cached across messages")
}

func TestScreenAcceptsRecordSubmittedPayload(t *testing.T) {
	valid, rejected := screen([]Message{testMessage(1, "norte", "office_records")})
	require.Empty(t, rejected)
	require.Len(t, valid, 1)
}

func TestScreenRejectsUndeliverableEvents(t *testing.T) {
	unknown := testMessage(1, "norte", "office_records")
	unknown.EventType = "record.deleted"

	missing := testMessage(2, "norte", "office_records")
	missing.Payload = withPayload(t, func(body map[string]any) { delete(body, "period_key") })

	negative := testMessage(3, "norte", "office_records")
	negative.Payload = withPayload(t, func(body map[string]any) { body["calls"] = -1 })

	fractional := testMessage(4, "norte", "office_records")
	fractional.Payload = withPayload(t, func(body map[string]any) { body["messages"] = 1.5 })

	extra := testMessage(5, "norte", "office_records")
	extra.Payload = withPayload(t, func(body map[string]any) { body["visitors"] = []string{"Juan"} })

	wrongType := testMessage(6, "norte", "office_records")
	wrongType.Payload = withPayload(t, func(body map[string]any) { body["revenue"] = 12.5 })

	foreign := testMessage(7, "norte", "office_records")
	foreign.Office = "sur"

	notObject := testMessage(8, "norte", "office_records")
	notObject.Payload = json.RawMessage(`[1,2]`)

	ok := testMessage(9, "centro", "office_records")

	valid, rejected := screen([]Message{unknown, missing, negative, fractional, extra, wrongType, foreign, notObject, ok})
	require.Len(t, valid, 1)
	require.Equal(t, int64(9), valid[0].EventID)

	reasons := map[int64]string{}
	for _, r := range rejected {
		reasons[r.msg.EventID] = r.err.Error()
	}
	require.Len(t, reasons, 8)
	require.Contains(t, reasons[1], "no schema metadata for event_type=record.deleted")
	require.Contains(t, reasons[2], `missing required field "period_key"`)
	require.Contains(t, reasons[3], `"calls": -1 is below minimum 0`)
	require.Contains(t, reasons[4], `"messages": expected integer`)
	require.Contains(t, reasons[5], `unexpected field "visitors"`)
	require.Contains(t, reasons[6], `"revenue": expected string`)
	require.Contains(t, reasons[7], `payload office "norte" does not match row office "sur"`)
	require.Contains(t, reasons[8], "not a JSON object")
}

func TestDeliverKeysMessagesByOffice(t *testing.T) {
	producer := &stubProducer{}
	d := &Dispatcher{producer: producer, registry: &stubRegistry{id: 3}, logger: zerolog.Nop()}

	offices := []string{"norte", "sur", "norte", "centro", "sur"}
	msgs := make([]Message, len(offices))
	for i, office := range offices {
		msgs[i] = testMessage(int64(i+1), office, "office_records")
	}
	require.NoError(t, d.deliver(context.Background(), msgs))

	require.Len(t, producer.writes, 1)
	written := producer.writes[0].messages
	require.Len(t, written, len(offices))

	balancer := &kafka.Hash{}
	partitions := []int{0, 1, 2, 3, 4, 5}
	byOffice := map[string]int{}
	for i, m := range written {
		require.Equal(t, offices[i], string(m.Key), "batch keeps outbox order")
		p := balancer.Balance(m, partitions...)
		if prev, seen := byOffice[string(m.Key)]; seen {
			require.Equal(t, prev, p, "one office always lands on one partition")
		}
		byOffice[string(m.Key)] = p
	}
	require.Len(t, byOffice, 3)
}

func TestMustSchemaPanicsOnInvalidDocument(t *testing.T) {
	require.Panics(t, func() { mustSchema(`{"properties": [`) })
}

func TestDeliverRegistryFailure(t *testing.T) {
	producer := &stubProducer{}
	registry := &stubRegistry{err: errors.New("registry down")}
	d := &Dispatcher{producer: producer, registry: registry, logger: zerolog.Nop()}

	err := d.deliver(context.Background(), []Message{testMessage(1, "norte", "office_records")})
	require.ErrorContains(t, err, "registry down")
	require.Empty(t, producer.writes)
}

func testMessage(id int64, office, topic string) Message {
	payload, _ := json.Marshal(platformevents.RecordSubmitted{
		RecordID:      "r",
		Office:        office,
		PeriodKey:     "2025-W10",
		Consultations: 2,
		Calls:         1,
		Revenue:       "12.5",
		CreatedAt:     time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC),
	})
	return Message{
		EventID:       id,
		Office:        office,
		AggregateType: "record",
		AggregateID:   "r",
		EventType:     "record.submitted",
		Topic:         topic,
		SchemaSubject: "office_records-value",
		PartitionKey:  office,
		Payload:       payload,
	}
}

func withPayload(t *testing.T, edit func(map[string]any)) json.RawMessage {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.Unmarshal(testMessage(0, "norte", "office_records").Payload, &body))
	edit(body)
	out, err := json.Marshal(body)
	require.NoError(t, err)
	return out
}

type stubProducer struct {
	mu     sync.Mutex
	err    error
	writes []writtenBatch
}

type writtenBatch struct {
	topic    string
	messages []kafka.Message
}

func (s *stubProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.err != nil {
		return s.err
	}

	copied := make([]kafka.Message, len(msgs))
	copy(copied, msgs)

	s.writes = append(s.writes, writtenBatch{
		topic:    topic,
		messages: copied,
	})
	return nil
}

type stubRegistry struct {
	mu    sync.Mutex
	id    int
	err   error
	calls []schemaCall
}

type schemaCall struct {
	subject string
	schema  string
}

func (s *stubRegistry) EnsureSchema(ctx context.Context, subject string, schema string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, schemaCall{subject: subject, schema: schema})
	if s.err != nil {
		return 0, s.err
	}
	if s.id == 0 {
		s.id = 1
	}
	return s.id, nil
}
