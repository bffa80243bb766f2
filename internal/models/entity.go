package models

import "fmt"

// EntityKind enumerates the entities that administrative operations can
// address by id.
type EntityKind string

const (
	EntityUser        EntityKind = "user"
	EntityCategory    EntityKind = "category"
	EntityTransaction EntityKind = "transaction"
)

// EntityKinds lists every kind in a stable order.
var EntityKinds = []EntityKind{EntityUser, EntityCategory, EntityTransaction}

// ParseEntityKind converts s into an EntityKind.
func ParseEntityKind(s string) (EntityKind, error) {
	switch k := EntityKind(s); k {
	case EntityUser, EntityCategory, EntityTransaction:
		return k, nil
	}
	return "", fmt.Errorf("unknown entity kind %q", s)
}

// NewModel returns an empty model value for the kind, suitable for gorm calls.
func (k EntityKind) NewModel() any {
	switch k {
	case EntityUser:
		return &User{}
	case EntityCategory:
		return &Category{}
	case EntityTransaction:
		return &Transaction{}
	}
	panic(fmt.Sprintf("models: unhandled entity kind %q", string(k)))
}
