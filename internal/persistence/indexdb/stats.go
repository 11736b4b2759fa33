package indexdb

type Stats struct {
	QueueDepth        int    `json:"queue_depth"`
	QueueCapacity     int    `json:"queue_capacity"`
	DropSessionTotal  uint64 `json:"drop_session_total"`
	DropEditTotal     uint64 `json:"drop_edit_total"`
	DropSnapshotTotal uint64 `json:"drop_snapshot_total"`
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:        len(s.ch),
		QueueCapacity:     cap(s.ch),
		DropSessionTotal:  s.dropSessionTotal.Load(),
		DropEditTotal:     s.dropEditTotal.Load(),
		DropSnapshotTotal: s.dropSnapshotTotal.Load(),
	}
}
