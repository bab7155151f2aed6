package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// QueueStats reports processing queue occupancy.
type QueueStats interface {
	Depth() int
	Capacity() int
}

// Status is the payload served by the health endpoint.
type Status struct {
	OK            bool   `json:"ok"`
	Database      string `json:"database"`
	QueueDepth    int    `json:"queueDepth"`
	QueueCapacity int    `json:"queueCapacity"`
}

// Service encapsulates health-related checks.
type Service struct {
	DB    Pinger
	Queue QueueStats
}

// NewService constructs a new health service. Either dependency may be nil.
func NewService(db Pinger, queue QueueStats) *Service {
	return &Service{DB: db, Queue: queue}
}

// Status reports database reachability and queue depth. A failed ping marks
// the service unhealthy; a full queue does not.
func (s *Service) Status(ctx context.Context) Status {
	st := Status{OK: true, Database: "memory"}
	if s == nil {
		return st
	}
	if s.DB != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.DB.PingContext(pingCtx); err != nil {
			st.OK = false
			st.Database = "unreachable"
		} else {
			st.Database = "ok"
		}
	}
	if s.Queue != nil {
		st.QueueDepth = s.Queue.Depth()
		st.QueueCapacity = s.Queue.Capacity()
	}
	return st
}
