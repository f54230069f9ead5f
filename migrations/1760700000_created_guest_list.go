package migrations

import (
	"guestlist/internal/storage"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

func init() {
	m.Register(func(app core.App) error {
		return storage.EnsureSchema(app)
	}, func(app core.App) error {
		return storage.DropSchema(app)
	})
}
