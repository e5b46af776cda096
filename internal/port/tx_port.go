package port

import "context"

// UnitOfWork exposes repositories bound to one transaction.
type UnitOfWork interface {
	Orders() OrderRepository
	Inventory() InventoryLedger
	Catalog() CatalogReader
}

type Transactor interface {
	// InSerializableTx runs fn in a serializable transaction, retrying it on serialization failures.
	InSerializableTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}
