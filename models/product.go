package models

import "time"

type Category string

const (
	CategoryScented    Category = "scented"
	CategoryUnscented  Category = "unscented"
	CategoryDecorative Category = "decorative"
	CategorySeasonal   Category = "seasonal"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryScented, CategoryUnscented, CategoryDecorative, CategorySeasonal:
		return true
	}
	return false
}

type Dimensions struct {
	Height float64 `json:"height"`
	Width  float64 `json:"width"`
	Weight float64 `json:"weight"`
}

type Review struct {
	ID        int       `json:"id"`
	ProductID int       `json:"product_id"`
	UserID    int       `json:"user_id"`
	Name      string    `json:"name"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment"`
	CreatedAt time.Time `json:"created_at"`
}

type Product struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Price       float64    `json:"price"`
	Images      []string   `json:"images"`
	Category    Category   `json:"category"`
	Scent       string     `json:"scent,omitempty"`
	Stock       int        `json:"stock"`
	Rating      float64    `json:"rating"`
	NumReviews  int        `json:"num_reviews"`
	Featured    bool       `json:"featured"`
	Dimensions  Dimensions `json:"dimensions"`
	BurnTime    int        `json:"burn_time"`
	Reviews     []Review   `json:"reviews,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// ProductInput is the body of both create and update. Update replaces the
// whole product, so the same validation applies.
type ProductInput struct {
	Name        string     `json:"name" binding:"required"`
	Description string     `json:"description" binding:"required"`
	Price       float64    `json:"price" binding:"gte=0"`
	Images      []string   `json:"images" binding:"required,min=1"`
	Category    Category   `json:"category" binding:"required"`
	Scent       string     `json:"scent"`
	Stock       int        `json:"stock" binding:"gte=0"`
	Featured    bool       `json:"featured"`
	Dimensions  Dimensions `json:"dimensions"`
	BurnTime    int        `json:"burn_time" binding:"gte=0"`
}

type ReviewRequest struct {
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment" binding:"required"`
}

// ProductFilter holds the catalog query parameters.
type ProductFilter struct {
	Keyword  string
	Category string
	Scent    string
	MinPrice *float64
	MaxPrice *float64
	Page     int
}
