package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"

	"github.com/skillboard/portal/internal/core/domain"
)

const loginEventsCollection = "login_events"

// AuditRepository implements ports.AuditRepository on the login_events
// collection.
type AuditRepository struct {
	coll *mongo.Collection
}

func NewAuditRepository(db *mongo.Database) *AuditRepository {
	return &AuditRepository{coll: db.Collection(loginEventsCollection)}
}

// InsertLoginEvent appends one entry to the audit trail. Replaying an event
// with an ID already stored is not an error.
func (r *AuditRepository) InsertLoginEvent(ctx context.Context, event *domain.LoginEvent) error {
	doc := *event
	doc.At = doc.At.UTC()
	if _, err := r.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil
		}
		return fmt.Errorf("insert login event: %w", err)
	}
	return nil
}
