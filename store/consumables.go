package store

import (
	"fmt"
	"sync"
)

type WeldingConsumable struct {
	BaseRecord
	Type           string  `json:"type"`
	Classification string  `json:"classification"`
	Size           string  `json:"size"`
	JobNumber      string  `json:"job_number"`
	QuantityOnHand float64 `json:"quantity_on_hand"`
	ReorderLevel   float64 `json:"reorder_level"`
	HeatNumber     string  `json:"heat_number,omitempty"`
	StorageOven    string  `json:"storage_oven,omitempty"`
}

// ConsumableStore tracks welding consumable stock per job. Records are
// keyed by type, classification, size, and job; Receive and Issue
// upsert against that key. Stock dropping to or below the reorder
// level raises a warning notification.
type ConsumableStore struct {
	mu            sync.Mutex
	consumables   []*WeldingConsumable
	notifications *NotificationStore
	broker        *Broker
	now           clock
}

func NewConsumableStore(notifications *NotificationStore, broker *Broker) *ConsumableStore {
	return &ConsumableStore{
		notifications: notifications,
		broker:        broker,
		now:           realClock,
	}
}

func (s *ConsumableStore) findLocked(consumableType, classification, size, jobNumber string) *WeldingConsumable {
	for _, c := range s.consumables {
		if c.Type == consumableType && c.Classification == classification && c.Size == size && c.JobNumber == jobNumber {
			return c
		}
	}
	return nil
}

// Receive adds stock, creating the record when the key is new.
func (s *ConsumableStore) Receive(consumable WeldingConsumable, quantity float64) *WeldingConsumable {
	s.mu.Lock()
	existing := s.findLocked(consumable.Type, consumable.Classification, consumable.Size, consumable.JobNumber)
	now := s.now()
	if existing == nil {
		consumable.BaseRecord = BaseRecord{Id: newId(), CreatedAt: now, UpdatedAt: now}
		consumable.QuantityOnHand = quantity
		existing = &consumable
		s.consumables = append(s.consumables, existing)
	} else {
		existing.QuantityOnHand += quantity
		if consumable.HeatNumber != "" {
			existing.HeatNumber = consumable.HeatNumber
		}
		if consumable.StorageOven != "" {
			existing.StorageOven = consumable.StorageOven
		}
		existing.UpdatedAt = now
	}
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "consumables", EntityId: existing.Id})
	s.checkStock(existing)
	return existing
}

// Issue withdraws stock for a weld. Issuing more than is on hand is a
// precheck failure and leaves the record unchanged.
func (s *ConsumableStore) Issue(consumableType, classification, size, jobNumber string, quantity float64) (*WeldingConsumable, error) {
	s.mu.Lock()
	existing := s.findLocked(consumableType, classification, size, jobNumber)
	if existing == nil {
		s.mu.Unlock()
		return nil, ErrNotFound
	}
	if quantity > existing.QuantityOnHand {
		s.mu.Unlock()
		return nil, &PrecheckError{Field: "Quantity", Reason: "insufficient stock on hand"}
	}
	existing.QuantityOnHand -= quantity
	existing.UpdatedAt = s.now()
	s.mu.Unlock()

	s.broker.Publish(Event{Property: "consumables", EntityId: existing.Id})
	s.checkStock(existing)
	return existing, nil
}

func (s *ConsumableStore) checkStock(c *WeldingConsumable) {
	s.mu.Lock()
	low := c.ReorderLevel > 0 && c.QuantityOnHand <= c.ReorderLevel
	onHand := c.QuantityOnHand
	s.mu.Unlock()

	if !low {
		return
	}
	s.notifications.Add(NewNotification{
		Type:      NotificationTypeSystem,
		Severity:  NotificationSeverityWarning,
		Title:     "Consumable Stock Low",
		Message:   fmt.Sprintf("%s %s %s on job %s is down to %.1f", c.Type, c.Classification, c.Size, c.JobNumber, onHand),
		RelatedId: c.Id,
	})
}

func (s *ConsumableStore) Consumables() []*WeldingConsumable {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*WeldingConsumable{}, s.consumables...)
}

func (s *ConsumableStore) ConsumablesByJob(jobNumber string) []*WeldingConsumable {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*WeldingConsumable
	for _, c := range s.consumables {
		if c.JobNumber == jobNumber {
			out = append(out, c)
		}
	}
	return out
}

// LowStock returns consumables at or below their reorder level.
func (s *ConsumableStore) LowStock() []*WeldingConsumable {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*WeldingConsumable
	for _, c := range s.consumables {
		if c.ReorderLevel > 0 && c.QuantityOnHand <= c.ReorderLevel {
			out = append(out, c)
		}
	}
	return out
}
