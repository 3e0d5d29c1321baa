package models

import "time"

// CartLine is one line of the cart as stored by the cart service. Price is
// in paise. Lines are unique per (ProductID, Size, Color).
type CartLine struct {
	ProductID int64  `json:"product_id"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size"`
	Color     string `json:"color"`
}

// CartLineKey identifies a cart line.
type CartLineKey struct {
	ProductID int64
	Size      string
	Color     string
}

func (l CartLine) Key() CartLineKey {
	return CartLineKey{ProductID: l.ProductID, Size: l.Size, Color: l.Color}
}

// CartSnapshot is a read-only copy of a user's cart taken at one instant.
type CartSnapshot struct {
	UserID    string     `json:"user_id"`
	Items     []CartLine `json:"items"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// Total is the sum of price x quantity over all lines, in paise.
func (s *CartSnapshot) Total() int64 {
	if s == nil {
		return 0
	}
	var total int64
	for _, l := range s.Items {
		total += l.Price * int64(l.Quantity)
	}
	return total
}

func (s *CartSnapshot) IsEmpty() bool {
	return s == nil || len(s.Items) == 0
}
