package domain

import "github.com/shopspring/decimal"

type Dashboard struct {
	PeriodDays        int
	TotalOrders       int
	TotalRevenue      decimal.Decimal
	AverageOrderValue decimal.Decimal
	TopProducts       []ProductSales
	CategorySales     []CategorySales
	NewUsers          int
	ActiveUsers       int
	TopSearches       []SearchCount
	LowStockCount     int
	LowStockProducts  []Product
}

type ProductSales struct {
	ProductID    int64
	Name         string
	QuantitySold int
}

type CategorySales struct {
	CategoryID int64
	Name       string
	Revenue    decimal.Decimal
}

type SearchCount struct {
	Query string
	Count int
}
