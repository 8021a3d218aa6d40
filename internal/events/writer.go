package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Writer mirrors appended events into the sqlite catalog so they can be
// filtered and paginated across cases. The case log file stays canonical.
type Writer struct {
	DB *sql.DB
}

func (w Writer) Append(ctx context.Context, tx *sql.Tx, caseID string, evt Event) error {
	payload := evt.Payload
	if payload == nil {
		payload = Payload{}
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}
	_, err = tx.ExecContext(ctx, `INSERT OR IGNORE INTO events(event_id,case_id,ts,kind,payload_json) VALUES (?,?,?,?,?)`,
		evt.ID, caseID, evt.Timestamp.UTC().Format(time.RFC3339Nano), string(evt.Kind), string(data))
	return err
}

// Reindex replaces the mirrored events of a case, used after a restore.
func (w Writer) Reindex(ctx context.Context, tx *sql.Tx, caseID string, evts []Event) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM events WHERE case_id=?`, caseID); err != nil {
		return fmt.Errorf("clear case events: %w", err)
	}
	for _, evt := range evts {
		if err := w.Append(ctx, tx, caseID, evt); err != nil {
			return err
		}
	}
	return nil
}
