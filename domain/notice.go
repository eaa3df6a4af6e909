package domain

type NoticeKind string

const (
	NoticeSeatConflict NoticeKind = "SEAT_CONFLICT"
	NoticeHoldExpired  NoticeKind = "HOLD_EXPIRED"
	NoticeSyncDegraded NoticeKind = "SYNC_DEGRADED"
	NoticeSyncRestored NoticeKind = "SYNC_RESTORED"
)

// Notice is a short-lived, user-facing notification (the toast equivalent).
// Notices are advisory; dropping one never affects booking correctness.
type Notice struct {
	Kind    NoticeKind
	Message string
	SeatIDs []string
}
