package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// StartAuditConsumer connects to RabbitMQ, declares the storage.audit
// queue and consumes custody events, appending each one to
// logs/storage-audit.log in a single-line format.  It runs a reconnect
// loop with exponential backoff and never returns under normal
// operation; processing errors are logged and the offending message is
// rejected without requeueing so a bad payload cannot wedge the queue.
func StartAuditConsumer() {
	backoff := time.Second
	for {
		conn, err := amqp.Dial(brokerURL())
		if err != nil {
			logrus.WithError(err).Warnf("audit-consumer: dial failed; retrying in %s", backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		if err := consumeLoop(conn); err != nil {
			logrus.WithError(err).Warn("audit-consumer: consume loop ended; reconnecting")
			time.Sleep(2 * time.Second)
		}
	}
}

func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return errors.Wrap(err, "channel open")
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logrus.WithError(err).Warn("audit-consumer: set QoS failed")
	}

	if _, err := ch.QueueDeclare(auditQueueName, true, false, false, false, nil); err != nil {
		return errors.Wrap(err, "queue declare")
	}

	msgs, err := ch.Consume(auditQueueName, "", false, false, false, false, nil)
	if err != nil {
		return errors.Wrap(err, "queue consume")
	}

	for d := range msgs {
		if err := handleMessage(d.Body); err != nil {
			logrus.WithError(err).Warn("audit-consumer: handle message failed")
			_ = d.Nack(false, false)
			continue
		}
		_ = d.Ack(false)
	}
	return errors.New("deliveries channel closed")
}

func handleMessage(body []byte) error {
	var ev StorageAuditEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return errors.Wrap(err, "unmarshal")
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return errors.Wrap(err, "mkdir logs")
	}
	fpath := filepath.Join("logs", "storage-audit.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrap(err, "open log file")
	}
	defer f.Close()

	if _, err := f.WriteString(formatAuditLine(ev)); err != nil {
		return errors.Wrap(err, "write log")
	}
	return nil
}

func formatAuditLine(ev StorageAuditEvent) string {
	line := fmt.Sprintf("[%s] %s | event_id=%s | sample_item_id=%d | accession=%q",
		ev.OccurredAt, ev.Kind, ev.EventID, ev.SampleItemID, ev.AccessionNumber)
	if ev.FromPath != "" {
		line += fmt.Sprintf(" | from=%q", ev.FromPath)
	}
	if ev.ToPath != "" {
		line += fmt.Sprintf(" | to=%q", ev.ToPath)
	}
	if ev.Reason != "" {
		line += fmt.Sprintf(" | reason=%q", ev.Reason)
	}
	if ev.Actor != "" {
		line += fmt.Sprintf(" | actor=%q", ev.Actor)
	}
	return line + "\n"
}
