package event

import (
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
)

const (
	TopicTransactionCreated   = "transaction.created"
	TopicTransactionCancelled = "transaction.cancelled"
	TopicStockAdjusted        = "stock.adjusted"
	TopicStockLow             = "stock.low"
	TopicProductChanged       = "product.changed"
	TopicCategoryChanged      = "category.changed"
	TopicCustomerChanged      = "customer.changed"
	TopicSupplierChanged      = "supplier.changed"
	TopicUserChanged          = "user.changed"
	TopicAuth                 = "auth"
)

// Topics lists every topic the services publish on.
var Topics = []string{
	TopicTransactionCreated,
	TopicTransactionCancelled,
	TopicStockAdjusted,
	TopicStockLow,
	TopicProductChanged,
	TopicCategoryChanged,
	TopicCustomerChanged,
	TopicSupplierChanged,
	TopicUserChanged,
	TopicAuth,
}

// Actor identifies who triggered a change and from where.
type Actor struct {
	ID        uuid.UUID
	Name      string
	Email     string
	IPAddress string
	UserAgent string
}

// System is the actor used by scheduled jobs.
var System = Actor{Name: "system"}

type Event struct {
	Topic       string
	Action      string
	Entity      string
	EntityID    string
	Description string
	Actor       Actor
	Data        map[string]interface{}
	At          time.Time
}

// Publisher is what services depend on; delivery is always asynchronous and
// never fails the caller.
type Publisher interface {
	Publish(e Event)
}

type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) Publish(e Event) {
	if e.At.IsZero() {
		e.At = time.Now()
	}
	b.bus.Publish(e.Topic, e)
}

// Subscribe registers fn on each topic. Handlers run on their own goroutines.
func (b *Bus) Subscribe(fn func(Event), topics ...string) error {
	for _, topic := range topics {
		if err := b.bus.SubscribeAsync(topic, fn, false); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until every in-flight handler has returned.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}

type discard struct{}

func (discard) Publish(Event) {}

// Discard drops every event.
var Discard Publisher = discard{}
