package domain

import "time"

// Product описывает товар каталога, на который ссылаются заказы.
type Product struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name,omitempty" validate:"required,max=255"`
	PriceMinor int64     `json:"priceMinor,omitempty" validate:"gte=0"`
	Currency   string    `json:"currency,omitempty" validate:"required,len=3"`
	CreatedAt  time.Time `json:"createdAt,omitempty"`
}
