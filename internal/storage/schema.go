package storage

import (
	"database/sql"
	"errors"

	"github.com/pocketbase/pocketbase/core"
)

// EnsureSchema creates the guest list collections that are missing and adds
// the guest list fields to an existing events collection. It is safe to run
// more than once.
func EnsureSchema(app core.App) error {
	if err := ensureEvents(app); err != nil {
		return err
	}
	if err := ensureEntries(app); err != nil {
		return err
	}
	return ensureLegacy(app)
}

func findCollection(app core.App, name string) (*core.Collection, error) {
	col, err := app.FindCollectionByNameOrId(name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return col, err
}

func ensureEvents(app core.App) error {
	col, err := findCollection(app, EventsCollection)
	if err != nil {
		return err
	}
	if col == nil {
		col = core.NewBaseCollection(EventsCollection)
		col.Fields.Add(&core.TextField{Name: "name"})
	}

	changed := col.IsNew()
	add := func(f core.Field) {
		if col.Fields.GetByName(f.GetName()) == nil {
			col.Fields.Add(f)
			changed = true
		}
	}

	add(&core.SelectField{Name: "status", MaxSelect: 1, Values: []string{"publish", "unpublish"}})
	add(&core.SelectField{Name: "list_type", MaxSelect: 1, Values: []string{"guest_list", "ticketed"}})
	add(&core.DateField{Name: "guest_list_opens_at"})
	add(&core.DateField{Name: "guest_list_closes_at"})
	add(&core.NumberField{Name: "guest_list_capacity", OnlyInt: true})
	add(&core.AutodateField{Name: "created", OnCreate: true})
	add(&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true})

	if !changed {
		return nil
	}
	return app.Save(col)
}

func ensureEntries(app core.App) error {
	col, err := findCollection(app, EntriesCollection)
	if err != nil || col != nil {
		return err
	}

	col = core.NewBaseCollection(EntriesCollection)
	col.Fields.Add(
		&core.TextField{Name: "event", Required: true},
		&core.TextField{Name: "name", Required: true, Max: 200},
		&core.TextField{Name: "phone", Required: true, Max: 32},
		&core.TextField{Name: "promoter_id"},
		&core.TextField{Name: "team_id"},
		&core.BoolField{Name: "checked_in"},
		&core.DateField{Name: "check_in_time"},
		&core.TextField{Name: "credential_payload", Max: 4096},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	col.AddIndex("idx_guest_list_entries_event_phone", true, "`event`, `phone`", "")
	col.AddIndex("idx_guest_list_entries_event_created", false, "`event`, `created`", "")

	return app.Save(col)
}

// ensureLegacy creates the older guests table. It has no attribution or
// credential columns.
func ensureLegacy(app core.App) error {
	col, err := findCollection(app, LegacyCollection)
	if err != nil || col != nil {
		return err
	}

	col = core.NewBaseCollection(LegacyCollection)
	col.Fields.Add(
		&core.TextField{Name: "event", Required: true},
		&core.TextField{Name: "name", Required: true, Max: 200},
		&core.TextField{Name: "phone", Required: true, Max: 32},
		&core.BoolField{Name: "checked_in"},
		&core.DateField{Name: "check_in_time"},
		&core.AutodateField{Name: "created", OnCreate: true},
		&core.AutodateField{Name: "updated", OnCreate: true, OnUpdate: true},
	)
	col.AddIndex("idx_guests_event_phone", true, "`event`, `phone`", "")

	return app.Save(col)
}

// DropSchema removes the collections created by EnsureSchema, except events.
func DropSchema(app core.App) error {
	for _, name := range []string{LegacyCollection, EntriesCollection} {
		col, err := findCollection(app, name)
		if err != nil {
			return err
		}
		if col == nil {
			continue
		}
		if err := app.Delete(col); err != nil {
			return err
		}
	}
	return nil
}
