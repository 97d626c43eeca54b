package messaging

import (
	"encoding/json"
	"time"

	"waste-report-service/internal/model"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const consumeRetryDelay = 5 * time.Second

// ReportFeedConsumer relays report events published by any instance into
// this instance's SSE hub.
type ReportFeedConsumer struct {
	rmq    *RabbitMQ
	hub    *SSEHub
	logger *zap.Logger
	done   chan struct{}
}

func NewReportFeedConsumer(rmq *RabbitMQ, hub *SSEHub, logger *zap.Logger) *ReportFeedConsumer {
	return &ReportFeedConsumer{
		rmq:    rmq,
		hub:    hub,
		logger: logger,
		done:   make(chan struct{}),
	}
}

func (c *ReportFeedConsumer) Start() {
	go c.consume()
}

func (c *ReportFeedConsumer) consume() {
	for {
		select {
		case <-c.done:
			return
		default:
			msgs, err := c.rmq.Consume()
			if err != nil {
				c.logger.Warn("feed consume failed, retrying", zap.Error(err), zap.Duration("retry_in", consumeRetryDelay))
				select {
				case <-c.done:
					return
				case <-time.After(consumeRetryDelay):
				}
				continue
			}

			c.processMessages(msgs)
		}
	}
}

func (c *ReportFeedConsumer) processMessages(msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-c.done:
			return
		case msg, ok := <-msgs:
			if !ok {
				c.logger.Info("feed channel closed, reconnecting")
				return
			}

			c.handleMessage(msg)
		}
	}
}

func (c *ReportFeedConsumer) handleMessage(msg amqp.Delivery) {
	event, ok := decodeEvent(msg.Body)
	if !ok {
		c.logger.Warn("feed: bad message", zap.String("routing_key", msg.RoutingKey))
		msg.Nack(false, false)
		return
	}

	c.hub.Broadcast(event)
	msg.Ack(false)
}

func decodeEvent(body []byte) (model.ReportEvent, bool) {
	var event model.ReportEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return event, false
	}
	switch event.Type {
	case model.EventReportCreated, model.EventReportStatusUpdated:
	default:
		return event, false
	}
	return event, event.Report.ID != ""
}

func (c *ReportFeedConsumer) Stop() {
	close(c.done)
}
