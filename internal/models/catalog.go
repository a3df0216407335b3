package models

// Store is a merchant location orders are placed against. Only the fields
// the dispatch and order flows actually read are modeled — this system is
// not a merchant-management platform.
type Store struct {
	ID  string
	Lat float64
	Lng float64
}

// Address is a delivery destination.
type Address struct {
	ID  string
	Lat float64
	Lng float64
}

// Product is a catalog line item create_order resolves unit prices from.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	StoreID    string
}
