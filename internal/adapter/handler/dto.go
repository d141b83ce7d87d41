package handler

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/rl1809/grocery-store/internal/core/domain"
	"github.com/rl1809/grocery-store/internal/core/pricing"
	"github.com/rl1809/grocery-store/internal/core/service"
)

// money renders as a JSON number with exactly two decimals.
type money decimal.Decimal

func (m money) MarshalJSON() ([]byte, error) {
	return []byte(moneyString(m)), nil
}

func (m *money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*m = money(d)
	return nil
}

func nullMoney(d decimal.NullDecimal) *money {
	if !d.Valid {
		return nil
	}
	m := money(d.Decimal)
	return &m
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error string `json:"error"`
}

type userDTO struct {
	ID            int64  `json:"id"`
	Username      string `json:"username"`
	Email         string `json:"email"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Phone         string `json:"phone,omitempty"`
	Address       string `json:"address,omitempty"`
	City          string `json:"city,omitempty"`
	PostalCode    string `json:"postal_code,omitempty"`
	IsAdmin       bool   `json:"is_admin"`
	EmailVerified bool   `json:"email_verified"`
}

func toUser(u *domain.User) userDTO {
	return userDTO{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Address:       u.Address,
		City:          u.City,
		PostalCode:    u.PostalCode,
		IsAdmin:       u.IsAdmin,
		EmailVerified: u.EmailVerified,
	}
}

type productDTO struct {
	ID            int64    `json:"id"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	Price         money    `json:"price"`
	OriginalPrice *money   `json:"original_price"`
	ImageURL      string   `json:"image_url"`
	StockQuantity int      `json:"stock_quantity"`
	MinStockLevel int      `json:"min_stock_level"`
	Unit          string   `json:"unit"`
	Brand         string   `json:"brand"`
	Barcode       string   `json:"barcode,omitempty"`
	Weight        *float64 `json:"weight"`
	CategoryID    int64    `json:"category_id"`
	CategoryName  string   `json:"category_name"`
	IsAvailable   bool     `json:"is_available"`
	IsFeatured    bool     `json:"is_featured"`
	AverageRating float64  `json:"average_rating"`
	ReviewCount   int      `json:"review_count"`
}

func toProduct(p domain.Product) productDTO {
	return productDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         money(p.Price),
		OriginalPrice: nullMoney(p.OriginalPrice),
		ImageURL:      p.ImageURL,
		StockQuantity: p.StockQuantity,
		MinStockLevel: p.MinStockLevel,
		Unit:          p.Unit,
		Brand:         p.Brand,
		Barcode:       p.Barcode,
		Weight:        p.Weight,
		CategoryID:    p.CategoryID,
		CategoryName:  p.CategoryName,
		IsAvailable:   p.IsAvailable,
		IsFeatured:    p.IsFeatured,
		AverageRating: p.AverageRating,
		ReviewCount:   p.ReviewCount,
	}
}

func toProducts(ps []domain.Product) []productDTO {
	out := make([]productDTO, 0, len(ps))
	for _, p := range ps {
		out = append(out, toProduct(p))
	}
	return out
}

type reviewDTO struct {
	ID                 int64     `json:"id"`
	UserName           string    `json:"user_name"`
	Rating             int       `json:"rating"`
	Title              string    `json:"title"`
	Comment            string    `json:"comment"`
	IsVerifiedPurchase bool      `json:"is_verified_purchase"`
	CreatedAt          time.Time `json:"created_at"`
}

func toReviews(rs []domain.Review) []reviewDTO {
	out := make([]reviewDTO, 0, len(rs))
	for _, r := range rs {
		out = append(out, reviewDTO{
			ID:                 r.ID,
			UserName:           domain.ShortName(r.FirstName, r.LastName),
			Rating:             r.Rating,
			Title:              r.Title,
			Comment:            r.Comment,
			IsVerifiedPurchase: r.IsVerifiedPurchase,
			CreatedAt:          r.CreatedAt,
		})
	}
	return out
}

type productDetailDTO struct {
	productDTO
	Reviews []reviewDTO `json:"reviews"`
}

type categoryDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	SortOrder    int    `json:"sort_order"`
	IsActive     bool   `json:"is_active"`
	ProductCount int    `json:"product_count"`
}

func toCategory(c domain.Category) categoryDTO {
	return categoryDTO{
		ID:           c.ID,
		Name:         c.Name,
		Description:  c.Description,
		ImageURL:     c.ImageURL,
		SortOrder:    c.SortOrder,
		IsActive:     c.IsActive,
		ProductCount: c.ProductCount,
	}
}

type cartLineDTO struct {
	ID            int64  `json:"id"`
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	Price         money  `json:"price"`
	Quantity      int    `json:"quantity"`
	Total         money  `json:"total"`
	ImageURL      string `json:"image_url"`
	StockQuantity int    `json:"stock_quantity"`
	Unit          string `json:"unit"`
}

type totalsDTO struct {
	Subtotal       money `json:"subtotal"`
	TaxAmount      money `json:"tax_amount"`
	DeliveryFee    money `json:"delivery_fee"`
	DiscountAmount money `json:"discount_amount"`
	Total          money `json:"total"`
	ItemCount      int   `json:"item_count"`
}

func toTotals(b pricing.Breakdown) totalsDTO {
	return totalsDTO{
		Subtotal:       money(b.Subtotal),
		TaxAmount:      money(b.Tax),
		DeliveryFee:    money(b.Delivery),
		DiscountAmount: money(b.Discount),
		Total:          money(b.Total),
		ItemCount:      b.ItemCount,
	}
}

type cartDTO struct {
	Items []cartLineDTO `json:"items"`
	totalsDTO
	CouponCode string `json:"coupon_code,omitempty"`
}

func toCart(lines []domain.CartLine, b pricing.Breakdown) cartDTO {
	items := make([]cartLineDTO, 0, len(lines))
	for _, l := range lines {
		items = append(items, cartLineDTO{
			ID:            l.Item.ID,
			ProductID:     l.Product.ID,
			Name:          l.Product.Name,
			Price:         money(l.Product.Price),
			Quantity:      l.Item.Quantity,
			Total:         money(l.Total()),
			ImageURL:      l.Product.ImageURL,
			StockQuantity: l.Product.StockQuantity,
			Unit:          l.Product.Unit,
		})
	}
	return cartDTO{Items: items, totalsDTO: toTotals(b)}
}

func toQuote(q *service.Quote) cartDTO {
	out := toCart(q.Lines, q.Breakdown)
	if q.Coupon != nil {
		out.CouponCode = q.Coupon.Code
	}
	return out
}

type wishlistDTO struct {
	ID            int64     `json:"id"`
	ProductID     int64     `json:"product_id"`
	Name          string    `json:"name"`
	Price         money     `json:"price"`
	ImageURL      string    `json:"image_url"`
	IsAvailable   bool      `json:"is_available"`
	StockQuantity int       `json:"stock_quantity"`
	AddedAt       time.Time `json:"added_at"`
}

func toWishlist(entries []domain.WishlistEntry) []wishlistDTO {
	out := make([]wishlistDTO, 0, len(entries))
	for _, e := range entries {
		out = append(out, wishlistDTO{
			ID:            e.Item.ID,
			ProductID:     e.Product.ID,
			Name:          e.Product.Name,
			Price:         money(e.Product.Price),
			ImageURL:      e.Product.ImageURL,
			IsAvailable:   e.Product.IsAvailable,
			StockQuantity: e.Product.StockQuantity,
			AddedAt:       e.Item.AddedAt,
		})
	}
	return out
}

type orderItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	Price       money  `json:"price"`
	Total       money  `json:"total"`
}

type orderDTO struct {
	ID                  int64          `json:"id"`
	OrderNumber         string         `json:"order_number"`
	Status              string         `json:"status"`
	PaymentStatus       string         `json:"payment_status"`
	PaymentMethod       string         `json:"payment_method"`
	Subtotal            money          `json:"subtotal"`
	TaxAmount           money          `json:"tax_amount"`
	DeliveryFee         money          `json:"delivery_fee"`
	DiscountAmount      money          `json:"discount_amount"`
	TotalAmount         money          `json:"total_amount"`
	CouponCode          string         `json:"coupon_code,omitempty"`
	DeliveryAddress     string         `json:"delivery_address"`
	DeliveryDate        *time.Time     `json:"delivery_date,omitempty"`
	DeliveryTimeSlot    string         `json:"delivery_time_slot,omitempty"`
	SpecialInstructions string         `json:"special_instructions,omitempty"`
	TrackingNumber      string         `json:"tracking_number,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	Items               []orderItemDTO `json:"items"`
}

func toOrder(o *domain.Order) orderDTO {
	items := make([]orderItemDTO, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, orderItemDTO{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       money(it.Price),
			Total:       money(it.Total),
		})
	}
	return orderDTO{
		ID:                  o.ID,
		OrderNumber:         o.OrderNumber,
		Status:              string(o.Status),
		PaymentStatus:       string(o.PaymentStatus),
		PaymentMethod:       string(o.PaymentMethod),
		Subtotal:            money(o.Subtotal),
		TaxAmount:           money(o.TaxAmount),
		DeliveryFee:         money(o.DeliveryFee),
		DiscountAmount:      money(o.DiscountAmount),
		TotalAmount:         money(o.TotalAmount),
		CouponCode:          o.CouponCode,
		DeliveryAddress:     o.DeliveryAddress,
		DeliveryDate:        o.DeliveryDate,
		DeliveryTimeSlot:    o.DeliveryTimeSlot,
		SpecialInstructions: o.SpecialInstructions,
		TrackingNumber:      o.TrackingNumber,
		CreatedAt:           o.CreatedAt,
		Items:               items,
	}
}

type couponDTO struct {
	ID                int64      `json:"id"`
	Code              string     `json:"code"`
	Description       string     `json:"description"`
	DiscountType      string     `json:"discount_type"`
	DiscountValue     money      `json:"discount_value"`
	MinOrderAmount    money      `json:"min_order_amount"`
	MaxDiscountAmount *money     `json:"max_discount_amount"`
	UsageLimit        *int       `json:"usage_limit"`
	UsedCount         int        `json:"used_count"`
	IsActive          bool       `json:"is_active"`
	ValidFrom         time.Time  `json:"valid_from"`
	ValidUntil        *time.Time `json:"valid_until"`
}

func toCoupon(c *domain.Coupon) couponDTO {
	return couponDTO{
		ID:                c.ID,
		Code:              c.Code,
		Description:       c.Description,
		DiscountType:      string(c.DiscountType),
		DiscountValue:     money(c.DiscountValue),
		MinOrderAmount:    money(c.MinOrderAmount),
		MaxDiscountAmount: nullMoney(c.MaxDiscountAmount),
		UsageLimit:        c.UsageLimit,
		UsedCount:         c.UsedCount,
		IsActive:          c.IsActive,
		ValidFrom:         c.ValidFrom,
		ValidUntil:        c.ValidUntil,
	}
}

type couponValidationDTO struct {
	Valid          bool   `json:"valid"`
	Message        string `json:"message,omitempty"`
	DiscountAmount *money `json:"discount_amount,omitempty"`
	DiscountType   string `json:"discount_type,omitempty"`
	DiscountValue  *money `json:"discount_value,omitempty"`
	Description    string `json:"description,omitempty"`
}

func toCouponValidation(v *service.CouponValidation) couponValidationDTO {
	if !v.Valid {
		return couponValidationDTO{Valid: false, Message: v.Message}
	}
	discount := money(v.DiscountAmount)
	value := money(v.Coupon.DiscountValue)
	return couponValidationDTO{
		Valid:          true,
		DiscountAmount: &discount,
		DiscountType:   string(v.Coupon.DiscountType),
		DiscountValue:  &value,
		Description:    v.Coupon.Description,
	}
}

type inventoryLogDTO struct {
	ID               int64     `json:"id"`
	ChangeType       string    `json:"change_type"`
	QuantityChange   int       `json:"quantity_change"`
	PreviousQuantity int       `json:"previous_quantity"`
	NewQuantity      int       `json:"new_quantity"`
	Reason           string    `json:"reason"`
	CreatedBy        *int64    `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}

func toInventoryLog(l domain.InventoryLog) inventoryLogDTO {
	return inventoryLogDTO{
		ID:               l.ID,
		ChangeType:       string(l.ChangeType),
		QuantityChange:   l.QuantityChange,
		PreviousQuantity: l.PreviousQuantity,
		NewQuantity:      l.NewQuantity,
		Reason:           l.Reason,
		CreatedBy:        l.CreatedBy,
		CreatedAt:        l.CreatedAt,
	}
}

type dashboardDTO struct {
	PeriodDays int `json:"period_days"`
	Sales      struct {
		TotalOrders       int   `json:"total_orders"`
		TotalRevenue      money `json:"total_revenue"`
		AverageOrderValue money `json:"average_order_value"`
	} `json:"sales"`
	Products struct {
		TopSelling       []topProductDTO `json:"top_selling"`
		LowStockCount    int             `json:"low_stock_count"`
		LowStockProducts []lowStockDTO   `json:"low_stock_products"`
	} `json:"products"`
	Categories struct {
		SalesByCategory []categorySalesDTO `json:"sales_by_category"`
	} `json:"categories"`
	Users struct {
		NewUsers    int `json:"new_users"`
		ActiveUsers int `json:"active_users"`
	} `json:"users"`
	Search struct {
		TopSearches []searchCountDTO `json:"top_searches"`
	} `json:"search"`
}

type topProductDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	QuantitySold int    `json:"quantity_sold"`
}

type lowStockDTO struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	CurrentStock int    `json:"current_stock"`
	MinLevel     int    `json:"min_level"`
}

type categorySalesDTO struct {
	Name    string `json:"name"`
	Revenue money  `json:"revenue"`
}

type searchCountDTO struct {
	Query string `json:"query"`
	Count int    `json:"count"`
}

func toDashboard(d *domain.Dashboard) dashboardDTO {
	var out dashboardDTO
	out.PeriodDays = d.PeriodDays
	out.Sales.TotalOrders = d.TotalOrders
	out.Sales.TotalRevenue = money(d.TotalRevenue)
	out.Sales.AverageOrderValue = money(d.AverageOrderValue)

	out.Products.TopSelling = make([]topProductDTO, 0, len(d.TopProducts))
	for _, p := range d.TopProducts {
		out.Products.TopSelling = append(out.Products.TopSelling, topProductDTO{ID: p.ProductID, Name: p.Name, QuantitySold: p.QuantitySold})
	}
	out.Products.LowStockCount = d.LowStockCount
	out.Products.LowStockProducts = make([]lowStockDTO, 0, len(d.LowStockProducts))
	for _, p := range d.LowStockProducts {
		out.Products.LowStockProducts = append(out.Products.LowStockProducts, lowStockDTO{
			ID: p.ID, Name: p.Name, CurrentStock: p.StockQuantity, MinLevel: p.MinStockLevel,
		})
	}
	out.Categories.SalesByCategory = make([]categorySalesDTO, 0, len(d.CategorySales))
	for _, c := range d.CategorySales {
		out.Categories.SalesByCategory = append(out.Categories.SalesByCategory, categorySalesDTO{Name: c.Name, Revenue: money(c.Revenue)})
	}
	out.Users.NewUsers = d.NewUsers
	out.Users.ActiveUsers = d.ActiveUsers
	out.Search.TopSearches = make([]searchCountDTO, 0, len(d.TopSearches))
	for _, s := range d.TopSearches {
		out.Search.TopSearches = append(out.Search.TopSearches, searchCountDTO{Query: s.Query, Count: s.Count})
	}
	return out
}

func moneyString(m money) string {
	return decimal.Decimal(m).StringFixed(2)
}
