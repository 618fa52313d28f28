package store

// Store is the composition root for the in-memory domain. New wires
// every store over one shared event broker; the graph is fixed at
// construction and exposed through read-only accessors.
type Store struct {
	broker        *Broker
	notifications *NotificationStore
	documents     *DocumentStore
	engine        *AnalysisEngine
	media         *MediaStore
	inspections   *InspectionStore
	schedule      *ScheduleStore
	collaboration *CollaborationStore
	analytics     *AnalyticsView
	audits        *AuditStore
	consumables   *ConsumableStore
	nde           *NdeStore
}

func New() (*Store, error) {
	broker := NewBroker()
	notifications := NewNotificationStore(broker)
	engine := NewAnalysisEngine()
	collaboration := NewCollaborationStore(notifications, broker)
	media := NewMediaStore(engine, notifications, broker)
	inspections := NewInspectionStore(notifications, collaboration, media, broker)

	s := &Store{
		broker:        broker,
		notifications: notifications,
		documents:     NewDocumentStore(broker),
		engine:        engine,
		media:         media,
		inspections:   inspections,
		schedule:      NewScheduleStore(inspections, notifications, collaboration, broker),
		collaboration: collaboration,
		analytics:     NewAnalyticsView(inspections),
		audits:        NewAuditStore(notifications, broker),
		consumables:   NewConsumableStore(notifications, broker),
		nde:           NewNdeStore(notifications, broker),
	}
	return s, nil
}

// MustNew is for wiring paths where a construction failure is fatal.
func MustNew() *Store {
	s, err := New()
	if err != nil {
		panic(&InitializationError{Err: err})
	}
	return s
}

func (s *Store) Events() *Broker                     { return s.broker }
func (s *Store) Notifications() *NotificationStore   { return s.notifications }
func (s *Store) Documents() *DocumentStore           { return s.documents }
func (s *Store) Analysis() *AnalysisEngine           { return s.engine }
func (s *Store) Media() *MediaStore                  { return s.media }
func (s *Store) Inspections() *InspectionStore       { return s.inspections }
func (s *Store) Schedule() *ScheduleStore            { return s.schedule }
func (s *Store) Collaboration() *CollaborationStore  { return s.collaboration }
func (s *Store) Analytics() *AnalyticsView           { return s.analytics }
func (s *Store) Audits() *AuditStore                 { return s.audits }
func (s *Store) Consumables() *ConsumableStore       { return s.consumables }
func (s *Store) Nde() *NdeStore                      { return s.nde }
