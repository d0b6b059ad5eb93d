package user

import (
	"context"

	"github.com/google/uuid"
)

// Contact is the reachable identity of an account holder.
type Contact struct {
	ID    uuid.UUID
	Name  string
	Email string
	Phone string
}

// Directory resolves account ids to contact details.
type Directory interface {
	FindContact(ctx context.Context, id uuid.UUID) (Contact, error)
}
