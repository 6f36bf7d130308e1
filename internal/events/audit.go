package events

import (
	"fmt"

	"unshub/pkg/logging"
	pkgstrings "unshub/pkg/strings"
)

// AuditLogger subscribes to every event type on a bus and writes one log
// line per event with the stable keys (ConnectionId, Topic, Status, ...).
// It is registered by the application at bootstrap and exists purely for
// observability; detaching it never affects other subscribers.
type AuditLogger struct {
	subs []*Subscription
}

// NewAuditLogger attaches an audit logger to the bus.
func NewAuditLogger(bus *Bus) *AuditLogger {
	a := &AuditLogger{}
	a.subs = []*Subscription{
		Subscribe(bus, func(e DataReceived) {
			logging.Debug("Audit", "DataReceived ConnectionId=%s Topic=%s Value=%s",
				e.ConnectionID, e.DataPoint.Topic,
				pkgstrings.TruncateValue(fmt.Sprint(e.DataPoint.Value), pkgstrings.DefaultValueMaxLen))
		}),
		Subscribe(bus, func(e TopicDataUpdated) {
			logging.Debug("Audit", "TopicDataUpdated Topic=%s Source=%s", e.Topic, e.Source)
		}),
		Subscribe(bus, func(e TopicAdded) {
			logging.Info("Audit", "TopicAdded Topic=%s Source=%s", e.Topic, e.Source)
		}),
		Subscribe(bus, func(e BulkTopicsAdded) {
			logging.Info("Audit", "BulkTopicsAdded BatchSize=%d Source=%s", len(e.Items), e.Source)
		}),
		Subscribe(bus, func(e NamespaceStructureChanged) {
			logging.Info("Audit", "NamespaceStructureChanged Namespace=%s ChangeType=%s ChangedBy=%s",
				e.ChangedNamespace, e.ChangeType, e.ChangedBy)
		}),
		Subscribe(bus, func(e TopicAutoMapped) {
			logging.Info("Audit", "TopicAutoMapped Topic=%s Namespace=%s", e.Topic, e.MappedNamespace)
		}),
		Subscribe(bus, func(e TopicAutoMappingFailed) {
			logging.Debug("Audit", "TopicAutoMappingFailed Topic=%s Reason=%s", e.Topic, e.Reason)
		}),
		Subscribe(bus, func(e ConnectionStatusChanged) {
			logging.Info("Audit", "ConnectionStatusChanged ConnectionId=%s Status=%s (was %s)",
				e.ConnectionID, e.NewStatus, e.OldStatus)
		}),
	}
	return a
}

// Detach cancels every audit subscription. Safe to call more than once.
func (a *AuditLogger) Detach() {
	for _, sub := range a.subs {
		sub.Cancel()
	}
}
