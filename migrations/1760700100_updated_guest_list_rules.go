package migrations

import (
	"guestlist/internal/storage"

	"github.com/pocketbase/pocketbase/core"
	m "github.com/pocketbase/pocketbase/migrations"
)

// Guest list records are only reachable through the guest list API, so the
// generic record endpoints stay superuser only. Events stay publicly readable.
func init() {
	m.Register(func(app core.App) error {
		events, err := app.FindCollectionByNameOrId(storage.EventsCollection)
		if err != nil {
			return err
		}
		events.ListRule = nil
		events.ViewRule = new(string)

		for _, name := range []string{storage.EntriesCollection, storage.LegacyCollection} {
			col, err := app.FindCollectionByNameOrId(name)
			if err != nil {
				return err
			}
			col.ListRule = nil
			col.ViewRule = nil
			col.CreateRule = nil
			col.UpdateRule = nil
			col.DeleteRule = nil
			if err := app.Save(col); err != nil {
				return err
			}
		}
		return app.Save(events)
	}, func(app core.App) error {
		events, err := app.FindCollectionByNameOrId(storage.EventsCollection)
		if err != nil {
			return err
		}
		events.ViewRule = nil
		return app.Save(events)
	})
}
