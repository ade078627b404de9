package outbox

import "encoding/json"

// Kafka topic name equals EventType, one event kind per topic.
const (
	EventAppointmentBooked    = "salon.appointment.booked.v1"
	EventAppointmentUpdated   = "salon.appointment.updated.v1"
	EventAppointmentCancelled = "salon.appointment.cancelled.v1"
	EventPackageSold          = "salon.package.sold.v1"
	EventPackageExpired       = "salon.package.expired.v1"
	EventSalePaid             = "salon.sale.paid.v1"
)

// Event is the domain event envelope written to the outbox table inside the
// same transaction as the state change it describes.
type Event struct {
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

func NewEvent(aggregateType, aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	return Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
