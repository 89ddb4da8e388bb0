package queue

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// notificationQueues lists every queue the consumer drains.  Each
// message becomes one line in logs/notifications.log; a real deployment
// would hand these to a mail or push collaborator instead.
var notificationQueues = []string{
	QueueReservationConfirmed,
	QueueCheckInRecorded,
	QueueWaitlistPromoted,
}

// StartNotificationConsumer connects to RabbitMQ, declares the
// notification queues (durable), and starts consuming messages.  The
// function runs a reconnect loop with exponential backoff and keeps
// running indefinitely; processing errors are logged and the offending
// message rejected without requeue so the server continues operating.
func StartNotificationConsumer() error {
	url := brokerURL()
	backoff := time.Second
	for {
		conn, err := amqp.Dial(url)
		if err != nil {
			log.Printf("notify-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
			time.Sleep(backoff)
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second // reset after successful connect

		if err := consumeLoop(conn); err != nil {
			log.Printf("notify-consumer: consume loop ended: %v; reconnecting", err)
			_ = conn.Close()
			time.Sleep(2 * time.Second)
			continue
		}
	}
}

// consumeLoop drains all notification queues over one connection.  It
// returns when the deliveries channel of any queue closes, signalling
// the caller to reconnect.
func consumeLoop(conn *amqp.Connection) error {
	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		log.Printf("notify-consumer: set QoS failed: %v", err)
	}

	var wg sync.WaitGroup
	done := make(chan struct{})
	for _, name := range notificationQueues {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("queue declare %s: %w", name, err)
		}
		msgs, err := ch.Consume(name, "", false, false, false, false, nil)
		if err != nil {
			return fmt.Errorf("queue consume %s: %w", name, err)
		}
		wg.Add(1)
		go func(queueName string, deliveries <-chan amqp.Delivery) {
			defer wg.Done()
			for d := range deliveries {
				if err := handleMessage(queueName, d.Body); err != nil {
					log.Printf("notify-consumer: handle %s failed: %v", queueName, err)
					_ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
					continue
				}
				_ = d.Ack(false)
			}
			select {
			case done <- struct{}{}:
			default:
			}
		}(name, msgs)
	}
	<-done
	_ = ch.Close()
	wg.Wait()
	return errors.New("deliveries channel closed")
}

// handleMessage renders one notification line and appends it to
// logs/notifications.log.
func handleMessage(queueName string, body []byte) error {
	line, err := formatNotification(queueName, body)
	if err != nil {
		return err
	}
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return fmt.Errorf("mkdir logs: %w", err)
	}
	fpath := filepath.Join("logs", "notifications.log")
	f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("write log: %w", err)
	}
	return nil
}

func formatNotification(queueName string, body []byte) (string, error) {
	switch queueName {
	case QueueReservationConfirmed:
		var ev ReservationConfirmedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Reservation confirmed | ticket=%s | event_id=%d | event=%q | holder=%q <%s>\n",
			ev.ConfirmedAt, ev.TicketID, ev.EventID, ev.EventTitle, ev.HolderName, ev.HolderEmail), nil
	case QueueCheckInRecorded:
		var ev CheckInRecordedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		operator := "-"
		if ev.OperatorID != nil {
			operator = fmt.Sprintf("%d", *ev.OperatorID)
		}
		return fmt.Sprintf("[%s] Check-in recorded | ticket=%s | event_id=%d | method=%s | operator=%s\n",
			ev.CheckedInAt, ev.TicketID, ev.EventID, ev.Method, operator), nil
	case QueueWaitlistPromoted:
		var ev WaitlistPromotedEvent
		if err := json.Unmarshal(body, &ev); err != nil {
			return "", fmt.Errorf("unmarshal: %w", err)
		}
		return fmt.Sprintf("[%s] Waitlist promoted | ticket=%s | event_id=%d | holder=%q <%s> | new_status=%s\n",
			ev.PromotedAt, ev.TicketID, ev.EventID, ev.HolderName, ev.HolderEmail, ev.NewStatus), nil
	}
	return "", fmt.Errorf("unknown queue %q", queueName)
}
