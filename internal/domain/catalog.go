package domain

// CaseRecord is the sqlite catalog row for a case. The event log under Dir
// remains the source of truth for everything else.
type CaseRecord struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	CaseLength  int        `json:"case_length"`
	Status      CaseStatus `json:"status" enum:"created,active,closed"`
	Dir         string     `json:"dir"`
	CreatedBy   string     `json:"created_by"`
	CreatedAt   string     `json:"created_at" format:"date-time"`
	UpdatedAt   string     `json:"updated_at" format:"date-time"`
}

// IndexedEvent is an event as mirrored into the catalog.
type IndexedEvent struct {
	Seq     int64  `json:"seq"`
	ID      string `json:"id"`
	CaseID  string `json:"case_id"`
	TS      string `json:"ts" format:"date-time"`
	Kind    string `json:"kind"`
	Payload string `json:"payload,omitempty"`
}

// Member grants an actor a role on one case.
type Member struct {
	CaseID    string `json:"case_id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role" enum:"player,gm"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"-"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
