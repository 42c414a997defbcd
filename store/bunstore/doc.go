// Package bunstore implements the service store port on top of bun.
//
// Filters are compiled into parameterized WHERE clauses. API field names are
// resolved against the model's bun table, either by exact column name or by
// their snake case form, and a name that maps to no column is rejected with a
// validation error instead of being passed to the database.
//
//	db, err := bunstore.Open(bunstore.DBConfig{Driver: bunstore.DriverSQLite, DSN: "file::memory:?cache=shared"})
//	if err != nil {
//		return err
//	}
//	if err := bunstore.Migrate(ctx, db, migrations.FS, "."); err != nil {
//		return err
//	}
//	store, err := bunstore.New[acl.UserACL](db)
//
// Single record updates and deletes run in a transaction that first selects
// the target by filter and then acts on its primary key, so the record
// returned is the one that was changed.
package bunstore
