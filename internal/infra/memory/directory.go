package memory

import (
	"context"
	"sync"

	"trivia-service/internal/domain"
)

// Directory maps user ids to emails in memory.
type Directory struct {
	mu     sync.RWMutex
	emails map[string]string
}

func NewDirectory() *Directory {
	return &Directory{emails: make(map[string]string)}
}

// Upsert records the email of who. Identities without an email leave an existing entry untouched.
func (d *Directory) Upsert(_ context.Context, who domain.Identity) error {
	if who.Email == nil {
		return nil
	}
	d.mu.Lock()
	d.emails[who.ID] = *who.Email
	d.mu.Unlock()
	return nil
}

func (d *Directory) DisplayNames(_ context.Context, userIDs []string) (map[string]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	names := make(map[string]string, len(userIDs))
	for _, id := range userIDs {
		if email, ok := d.emails[id]; ok {
			names[id] = email
		}
	}
	return names, nil
}
